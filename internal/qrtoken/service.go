package qrtoken

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spot/internal/apperr"
	"spot/internal/clock"
	"spot/internal/metrics"
	"spot/internal/roster"
	"spot/internal/session"
)

// Store is the persistence surface the service needs. *Repository implements it.
type Store interface {
	ReplaceActive(ctx context.Context, t Token) (Token, error)
	ByValue(ctx context.Context, value string) (Token, error)
	ActiveBySession(ctx context.Context, sessionID int64) (*Token, error)
	MarkInactive(ctx context.Context, value string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionLookup resolves sessions by id.
type SessionLookup interface {
	ByID(ctx context.Context, id int64) (session.Session, error)
}

// SectionLookup resolves sections for ownership checks.
type SectionLookup interface {
	SectionByID(ctx context.Context, id int64) (roster.Section, error)
}

// Service issues, verifies and sweeps QR tokens.
type Service struct {
	store      Store
	sessions   SessionLookup
	sections   SectionLookup
	clock      clock.Clock
	defaultTTL time.Duration
}

// NewService creates a service. defaultTTL applies when Issue gets ttl <= 0.
func NewService(store Store, sessions SessionLookup, sections SectionLookup, clk clock.Clock, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Service{store: store, sessions: sessions, sections: sections, clock: clk, defaultTTL: defaultTTL}
}

// Issue creates a fresh token for an ACTIVE session, superseding any prior
// active token. The requesting teacher must own the session's section.
func (s *Service) Issue(ctx context.Context, sessionID, teacherID int64, ttl time.Duration) (Token, error) {
	sess, err := s.sessions.ByID(ctx, sessionID)
	if err != nil {
		return Token{}, err
	}
	if sess.Status != session.StatusActive {
		return Token{}, fmt.Errorf("session %d is %s: %w", sessionID, sess.Status, apperr.ErrInvalidState)
	}
	if err := s.ownedBy(ctx, sess.SectionID, teacherID); err != nil {
		return Token{}, err
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.clock.Now()
	tok, err := s.store.ReplaceActive(ctx, Token{
		Value:       uuid.NewString(),
		SessionID:   sessionID,
		GeneratedAt: now,
		ExpiresAt:   now.Add(ttl),
		Active:      true,
	})
	if err != nil {
		return Token{}, err
	}
	metrics.TokensIssued.Inc()
	return tok, nil
}

// Verify validates a presented token and returns its session. Expired tokens
// are flipped inactive as a side effect, so verification does not depend on
// the sweeper having run. Session status is deliberately not re-checked here;
// the hot path stays a single token lookup.
func (s *Service) Verify(ctx context.Context, value string) (session.Session, error) {
	tok, err := s.store.ByValue(ctx, value)
	if err != nil {
		return session.Session{}, err
	}
	if s.clock.Now().After(tok.ExpiresAt) {
		_ = s.store.MarkInactive(ctx, value)
		return session.Session{}, fmt.Errorf("qr code expired at %s: %w", tok.ExpiresAt.Format(time.RFC3339), apperr.ErrExpired)
	}
	if !tok.Active {
		return session.Session{}, fmt.Errorf("qr code: %w", apperr.ErrInactive)
	}
	return s.sessions.ByID(ctx, tok.SessionID)
}

// Deactivate lets the owning teacher retire a token before expiry.
func (s *Service) Deactivate(ctx context.Context, value string, teacherID int64) error {
	tok, err := s.store.ByValue(ctx, value)
	if err != nil {
		return err
	}
	sess, err := s.sessions.ByID(ctx, tok.SessionID)
	if err != nil {
		return err
	}
	if err := s.ownedBy(ctx, sess.SectionID, teacherID); err != nil {
		return err
	}
	return s.store.MarkInactive(ctx, value)
}

// Get returns a token by its opaque value without redeeming it.
func (s *Service) Get(ctx context.Context, value string) (Token, error) {
	return s.store.ByValue(ctx, value)
}

// ActiveForSession returns the session's current active token, nil when none.
func (s *Service) ActiveForSession(ctx context.Context, sessionID int64) (*Token, error) {
	return s.store.ActiveBySession(ctx, sessionID)
}

// Sweep deactivates expired-but-active tokens and returns how many it flipped.
// Safe to run on any schedule; a missed run only delays the flag, never
// correctness, because Verify checks expiry itself.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.SweepExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	metrics.TokensSwept.Add(float64(n))
	return n, nil
}

func (s *Service) ownedBy(ctx context.Context, sectionID, teacherID int64) error {
	section, err := s.sections.SectionByID(ctx, sectionID)
	if err != nil {
		return err
	}
	if section.TeacherID != teacherID {
		return fmt.Errorf("section %d owned by teacher %d: %w", sectionID, section.TeacherID, apperr.ErrForbidden)
	}
	return nil
}
