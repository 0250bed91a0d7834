package session

import (
	"context"
	"fmt"

	"spot/internal/apperr"
	"spot/internal/clock"
	"spot/internal/roster"
)

// Store is the persistence surface the service needs. *Repository implements it.
type Store interface {
	Insert(ctx context.Context, s Session) (Session, error)
	ByID(ctx context.Context, id int64) (Session, error)
	Update(ctx context.Context, s Session) (Session, error)
	BySection(ctx context.Context, sectionID int64) ([]Session, error)
	ActiveBySection(ctx context.Context, sectionID int64) ([]Session, error)
	Delete(ctx context.Context, id int64) error
}

// SectionLookup resolves sections for ownership checks.
type SectionLookup interface {
	SectionByID(ctx context.Context, id int64) (roster.Section, error)
}

// Service drives the session state machine. Every transition is guarded by
// "requester is the section's assigned teacher".
type Service struct {
	store    Store
	sections SectionLookup
	clock    clock.Clock
}

// NewService creates a service.
func NewService(store Store, sections SectionLookup, clk clock.Clock) *Service {
	return &Service{store: store, sections: sections, clock: clk}
}

// owned loads the session and fails Forbidden unless teacherID is the
// section's assigned teacher.
func (s *Service) owned(ctx context.Context, id, teacherID int64) (Session, error) {
	sess, err := s.store.ByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	section, err := s.sections.SectionByID(ctx, sess.SectionID)
	if err != nil {
		return Session{}, err
	}
	if section.TeacherID != teacherID {
		return Session{}, fmt.Errorf("session %d owned by teacher %d: %w", id, section.TeacherID, apperr.ErrForbidden)
	}
	return sess, nil
}

// Create schedules a new session for a section owned by the teacher.
func (s *Service) Create(ctx context.Context, sectionID, teacherID int64, title, description string) (Session, error) {
	section, err := s.sections.SectionByID(ctx, sectionID)
	if err != nil {
		return Session{}, err
	}
	if section.TeacherID != teacherID {
		return Session{}, fmt.Errorf("section %d owned by teacher %d: %w", sectionID, section.TeacherID, apperr.ErrForbidden)
	}
	return s.store.Insert(ctx, Session{
		SectionID:   sectionID,
		Title:       title,
		Description: description,
		Status:      StatusScheduled,
	})
}

// Start transitions SCHEDULED or CANCELLED to ACTIVE and stamps the start time.
func (s *Service) Start(ctx context.Context, id, teacherID int64) (Session, error) {
	sess, err := s.owned(ctx, id, teacherID)
	if err != nil {
		return Session{}, err
	}
	if sess.Status != StatusScheduled && sess.Status != StatusCancelled {
		return Session{}, fmt.Errorf("cannot start session with status %s: %w", sess.Status, apperr.ErrInvalidState)
	}
	now := s.clock.Now()
	sess.Status = StatusActive
	sess.Active = true
	sess.StartTime = &now
	return s.store.Update(ctx, sess)
}

// End transitions ACTIVE to COMPLETED and stamps the end time.
func (s *Service) End(ctx context.Context, id, teacherID int64) (Session, error) {
	sess, err := s.owned(ctx, id, teacherID)
	if err != nil {
		return Session{}, err
	}
	if sess.Status != StatusActive {
		return Session{}, fmt.Errorf("cannot end session with status %s: %w", sess.Status, apperr.ErrInvalidState)
	}
	now := s.clock.Now()
	sess.Status = StatusCompleted
	sess.Active = false
	sess.EndTime = &now
	return s.store.Update(ctx, sess)
}

// Cancel moves any non-COMPLETED session to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id, teacherID int64) (Session, error) {
	sess, err := s.owned(ctx, id, teacherID)
	if err != nil {
		return Session{}, err
	}
	if sess.Status == StatusCompleted {
		return Session{}, fmt.Errorf("cannot cancel a completed session: %w", apperr.ErrInvalidState)
	}
	sess.Status = StatusCancelled
	sess.Active = false
	return s.store.Update(ctx, sess)
}

// Rename updates title and description; completed sessions are immutable.
func (s *Service) Rename(ctx context.Context, id, teacherID int64, title, description string) (Session, error) {
	sess, err := s.owned(ctx, id, teacherID)
	if err != nil {
		return Session{}, err
	}
	if sess.Status == StatusCompleted {
		return Session{}, fmt.Errorf("cannot update a completed session: %w", apperr.ErrInvalidState)
	}
	if title != "" {
		sess.Title = title
	}
	if description != "" {
		sess.Description = description
	}
	return s.store.Update(ctx, sess)
}

// Delete removes a session owned by the teacher.
func (s *Service) Delete(ctx context.Context, id, teacherID int64) error {
	if _, err := s.owned(ctx, id, teacherID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Get returns a single session.
func (s *Service) Get(ctx context.Context, id int64) (Session, error) {
	return s.store.ByID(ctx, id)
}

// ListBySection returns all sessions for a section.
func (s *Service) ListBySection(ctx context.Context, sectionID int64) ([]Session, error) {
	if _, err := s.sections.SectionByID(ctx, sectionID); err != nil {
		return nil, err
	}
	return s.store.BySection(ctx, sectionID)
}

// ActiveBySection returns the section's ACTIVE sessions.
func (s *Service) ActiveBySection(ctx context.Context, sectionID int64) ([]Session, error) {
	if _, err := s.sections.SectionByID(ctx, sectionID); err != nil {
		return nil, err
	}
	return s.store.ActiveBySection(ctx, sectionID)
}
