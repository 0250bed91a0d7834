package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"spot/internal/apperr"
	"spot/internal/roster"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) Today() time.Time {
	y, m, d := f.now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, f.now.Location())
}

type memStore struct {
	nextID   int64
	sessions map[int64]Session
}

func newMemStore() *memStore { return &memStore{sessions: map[int64]Session{}} }

func (m *memStore) Insert(_ context.Context, s Session) (Session, error) {
	m.nextID++
	s.ID = m.nextID
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) ByID(_ context.Context, id int64) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %d: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

func (m *memStore) Update(_ context.Context, s Session) (Session, error) {
	if _, ok := m.sessions[s.ID]; !ok {
		return Session{}, fmt.Errorf("session %d: %w", s.ID, apperr.ErrNotFound)
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) BySection(_ context.Context, sectionID int64) ([]Session, error) {
	var res []Session
	for _, s := range m.sessions {
		if s.SectionID == sectionID {
			res = append(res, s)
		}
	}
	return res, nil
}

func (m *memStore) ActiveBySection(_ context.Context, sectionID int64) ([]Session, error) {
	var res []Session
	for _, s := range m.sessions {
		if s.SectionID == sectionID && s.Status == StatusActive {
			res = append(res, s)
		}
	}
	return res, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %d: %w", id, apperr.ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

type fakeSections map[int64]roster.Section

func (f fakeSections) SectionByID(_ context.Context, id int64) (roster.Section, error) {
	s, ok := f[id]
	if !ok {
		return roster.Section{}, fmt.Errorf("section %d: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

const (
	ownerID   = int64(42)
	otherID   = int64(99)
	sectionID = int64(7)
)

func newFixture() (*Service, *fakeClock) {
	clk := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("GMT+8", 8*3600))}
	sections := fakeSections{sectionID: {ID: sectionID, CourseName: "CS101", TeacherID: ownerID}}
	return NewService(newMemStore(), sections, clk), clk
}

func TestLifecycle(t *testing.T) {
	svc, clk := newFixture()
	ctx := context.Background()

	sess, err := svc.Create(ctx, sectionID, ownerID, "Lecture 1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Status != StatusScheduled || sess.Active {
		t.Fatalf("new session: want SCHEDULED inactive, got %s active=%v", sess.Status, sess.Active)
	}

	sess, err = svc.Start(ctx, sess.ID, ownerID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Status != StatusActive || !sess.Active {
		t.Fatalf("started session: want ACTIVE, got %s active=%v", sess.Status, sess.Active)
	}
	if sess.StartTime == nil || !sess.StartTime.Equal(clk.now) {
		t.Fatalf("start time not stamped: %v", sess.StartTime)
	}

	clk.now = clk.now.Add(time.Hour)
	sess, err = svc.End(ctx, sess.ID, ownerID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sess.Status != StatusCompleted || sess.Active {
		t.Fatalf("ended session: want COMPLETED, got %s active=%v", sess.Status, sess.Active)
	}
	if sess.EndTime == nil || !sess.EndTime.Equal(clk.now) {
		t.Fatalf("end time not stamped: %v", sess.EndTime)
	}
}

func TestStartGuards(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, sectionID, ownerID, "", "")
	if _, err := svc.Start(ctx, sess.ID, ownerID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Start(ctx, sess.ID, ownerID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("start on ACTIVE: want ErrInvalidState, got %v", err)
	}
	if _, err := svc.End(ctx, sess.ID, ownerID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.Start(ctx, sess.ID, ownerID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("start on COMPLETED: want ErrInvalidState, got %v", err)
	}
}

func TestEndRequiresActive(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, sectionID, ownerID, "", "")
	if _, err := svc.End(ctx, sess.ID, ownerID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("end on SCHEDULED: want ErrInvalidState, got %v", err)
	}
}

func TestCancelAndRestart(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, sectionID, ownerID, "", "")
	sess, err := svc.Cancel(ctx, sess.ID, ownerID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sess.Status != StatusCancelled {
		t.Fatalf("want CANCELLED, got %s", sess.Status)
	}

	// Cancelled sessions can be started again.
	if _, err := svc.Start(ctx, sess.ID, ownerID); err != nil {
		t.Fatalf("start after cancel: %v", err)
	}

	// Completed sessions cannot be cancelled.
	if _, err := svc.End(ctx, sess.ID, ownerID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.Cancel(ctx, sess.ID, ownerID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("cancel on COMPLETED: want ErrInvalidState, got %v", err)
	}
}

func TestOwnershipGuards(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	if _, err := svc.Create(ctx, sectionID, otherID, "", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("create by non-owner: want ErrForbidden, got %v", err)
	}

	sess, _ := svc.Create(ctx, sectionID, ownerID, "", "")
	if _, err := svc.Start(ctx, sess.ID, otherID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("start by non-owner: want ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, sess.ID, otherID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("delete by non-owner: want ErrForbidden, got %v", err)
	}
}

func TestRenameRejectsCompleted(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, sectionID, ownerID, "Old", "")
	sess, err := svc.Rename(ctx, sess.ID, ownerID, "New", "desc")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if sess.Title != "New" || sess.Description != "desc" {
		t.Fatalf("rename did not apply: %+v", sess)
	}

	svc.Start(ctx, sess.ID, ownerID)
	svc.End(ctx, sess.ID, ownerID)
	if _, err := svc.Rename(ctx, sess.ID, ownerID, "Again", ""); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("rename on COMPLETED: want ErrInvalidState, got %v", err)
	}
}
