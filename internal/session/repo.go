package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"spot/internal/apperr"
)

const sessionCols = `id, section_id, COALESCE(title, ''), COALESCE(description, ''), status, is_active, start_time, end_time, created_at`

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.SectionID, &s.Title, &s.Description, &s.Status, &s.Active, &s.StartTime, &s.EndTime, &s.CreatedAt)
	return s, err
}

// Insert writes a new session.
func (r *Repository) Insert(ctx context.Context, s Session) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (section_id, title, description, status, is_active, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+sessionCols+`
	`, s.SectionID, s.Title, s.Description, s.Status, s.Active, s.StartTime, s.EndTime)
	return scanSession(row)
}

// ByID returns a session or apperr.ErrNotFound.
func (r *Repository) ByID(ctx context.Context, id int64) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %d: %w", id, apperr.ErrNotFound)
	}
	return s, err
}

// Update persists mutable fields of an existing session.
func (r *Repository) Update(ctx context.Context, s Session) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE sessions
		SET title = $2, description = $3, status = $4, is_active = $5, start_time = $6, end_time = $7
		WHERE id = $1
		RETURNING `+sessionCols+`
	`, s.ID, s.Title, s.Description, s.Status, s.Active, s.StartTime, s.EndTime)
	out, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %d: %w", s.ID, apperr.ErrNotFound)
	}
	return out, err
}

// BySection lists all sessions for a section, newest first.
func (r *Repository) BySection(ctx context.Context, sectionID int64) ([]Session, error) {
	return r.list(ctx, `SELECT `+sessionCols+` FROM sessions WHERE section_id = $1 ORDER BY created_at DESC`, sectionID)
}

// ActiveBySection lists sessions with status ACTIVE for a section.
func (r *Repository) ActiveBySection(ctx context.Context, sectionID int64) ([]Session, error) {
	return r.list(ctx, `SELECT `+sessionCols+` FROM sessions WHERE section_id = $1 AND status = 'ACTIVE' ORDER BY created_at DESC`, sectionID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Delete removes a session; tokens cascade with it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
