package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"spot/internal/apperr"
	"spot/internal/clock"
	"spot/internal/metrics"
	"spot/internal/session"
)

// Store is the persistence surface the recorder needs. *Repository implements it.
type Store interface {
	ByKey(ctx context.Context, studentID, sectionID int64, date time.Time) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	SetEndTime(ctx context.Context, id int64, end time.Time) error
	ByID(ctx context.Context, id int64) (Record, error)
	ByStudent(ctx context.Context, studentID int64) ([]Record, error)
	BySection(ctx context.Context, sectionID int64) ([]Record, error)
	BySectionAndDate(ctx context.Context, sectionID int64, date time.Time) ([]Record, error)
	Delete(ctx context.Context, id int64) error
}

// Verifier validates a presented token and resolves its session.
type Verifier interface {
	Verify(ctx context.Context, value string) (session.Session, error)
}

// Enrollment answers whether a student belongs to a section.
type Enrollment interface {
	IsEnrolled(ctx context.Context, sectionID, studentID int64) (bool, error)
}

// Service is the idempotent attendance write path.
type Service struct {
	store      Store
	verifier   Verifier
	enrollment Enrollment
	clock      clock.Clock
}

// NewService creates a service.
func NewService(store Store, verifier Verifier, enrollment Enrollment, clk clock.Clock) *Service {
	return &Service{store: store, verifier: verifier, enrollment: enrollment, clock: clk}
}

// Log redeems a token for the student and records presence. At most one
// record exists per (student, section, date); a same-day repeat updates the
// record's end time when unset but still returns ErrAlreadyLogged, matching
// the double-scan flow: the second scan closes the day, it does not succeed.
func (s *Service) Log(ctx context.Context, studentID int64, code string) (Record, error) {
	sess, err := s.verifier.Verify(ctx, code)
	if err != nil {
		reject(err)
		return Record{}, err
	}

	enrolled, err := s.enrollment.IsEnrolled(ctx, sess.SectionID, studentID)
	if err != nil {
		return Record{}, err
	}
	if !enrolled {
		reject(apperr.ErrConflict)
		return Record{}, fmt.Errorf("student %d not enrolled in section %d: %w", studentID, sess.SectionID, apperr.ErrConflict)
	}

	today := s.clock.Today()
	now := s.clock.Now()

	existing, err := s.store.ByKey(ctx, studentID, sess.SectionID, today)
	if err != nil {
		return Record{}, err
	}
	if existing != nil {
		if existing.EndTime == nil {
			if err := s.store.SetEndTime(ctx, existing.ID, now); err != nil {
				log.Printf("set end time for attendance %d failed: %v", existing.ID, err)
			}
		}
		reject(apperr.ErrAlreadyLogged)
		return Record{}, fmt.Errorf("student %d section %d: %w", studentID, sess.SectionID, apperr.ErrAlreadyLogged)
	}

	rec, err := s.store.Insert(ctx, Record{
		StudentID: studentID,
		SectionID: sess.SectionID,
		Date:      today,
		StartTime: now,
	})
	if err != nil {
		// A concurrent redemption may win the insert; the unique constraint
		// turns that into the same outcome as the pre-check.
		reject(err)
		return Record{}, err
	}
	metrics.AttendanceLogged.Inc()
	return rec, nil
}

// ByStudent lists a student's attendance history.
func (s *Service) ByStudent(ctx context.Context, studentID int64) ([]Record, error) {
	return s.store.ByStudent(ctx, studentID)
}

// BySection lists all records for a section, optionally filtered to one date.
func (s *Service) BySection(ctx context.Context, sectionID int64, date *time.Time) ([]Record, error) {
	if date != nil {
		return s.store.BySectionAndDate(ctx, sectionID, *date)
	}
	return s.store.BySection(ctx, sectionID)
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	return s.store.ByID(ctx, id)
}

// Delete removes a record. Admin-only; the redemption path never deletes.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

func reject(err error) {
	reason := "error"
	switch {
	case errors.Is(err, apperr.ErrExpired):
		reason = "expired"
	case errors.Is(err, apperr.ErrInactive):
		reason = "inactive"
	case errors.Is(err, apperr.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, apperr.ErrConflict):
		reason = "not_enrolled"
	case errors.Is(err, apperr.ErrAlreadyLogged):
		reason = "already_logged"
	}
	metrics.AttendanceRejected.WithLabelValues(reason).Inc()
}
