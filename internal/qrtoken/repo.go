package qrtoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spot/internal/apperr"
)

const tokenCols = `id, value, session_id, generated_at, expires_at, is_active`

// Repository persists QR tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanToken(row interface{ Scan(...any) error }) (Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.Value, &t.SessionID, &t.GeneratedAt, &t.ExpiresAt, &t.Active)
	return t, err
}

// ReplaceActive deactivates every active token for the session and inserts t,
// in one transaction. The partial unique index on (session_id) WHERE is_active
// backstops concurrent issuance: the second transaction's UPDATE re-evaluates
// after the first commits, so exactly one token ends up active.
func (r *Repository) ReplaceActive(ctx context.Context, t Token) (Token, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Token{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE qr_codes SET is_active = FALSE
		WHERE session_id = $1 AND is_active
	`, t.SessionID); err != nil {
		return Token{}, err
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO qr_codes (value, session_id, generated_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+tokenCols+`
	`, t.Value, t.SessionID, t.GeneratedAt, t.ExpiresAt)
	out, err := scanToken(row)
	if err != nil {
		return Token{}, err
	}
	return out, tx.Commit()
}

// ByValue looks a token up by its opaque value.
func (r *Repository) ByValue(ctx context.Context, value string) (Token, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM qr_codes WHERE value = $1`, value)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, fmt.Errorf("qr code: %w", apperr.ErrNotFound)
	}
	return t, err
}

// ActiveBySession returns the session's active token, if any.
func (r *Repository) ActiveBySession(ctx context.Context, sessionID int64) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenCols+` FROM qr_codes
		WHERE session_id = $1 AND is_active
		ORDER BY generated_at DESC LIMIT 1
	`, sessionID)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkInactive flips a token's active flag off.
func (r *Repository) MarkInactive(ctx context.Context, value string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE qr_codes SET is_active = FALSE WHERE value = $1`, value)
	return err
}

// SweepExpired deactivates active tokens past their expiry and returns the count.
func (r *Repository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE qr_codes SET is_active = FALSE
		WHERE is_active AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
