package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"spot/internal/apperr"
)

const recordCols = `id, student_id, section_id, date, start_time, end_time`

// dateLayout forces date parameters over the wire as plain calendar dates.
// Sending midnight-in-GMT+8 timestamps would let the server's timezone cast
// shift the day.
const dateLayout = "2006-01-02"

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.SectionID, &rec.Date, &rec.StartTime, &rec.EndTime)
	return rec, err
}

// ByKey returns the record for (student, section, date), nil when none exists.
func (r *Repository) ByKey(ctx context.Context, studentID, sectionID int64, date time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordCols+` FROM attendances
		WHERE student_id = $1 AND section_id = $2 AND date = $3
	`, studentID, sectionID, date.Format(dateLayout))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record. The unique (student_id, section_id, date)
// constraint is the source of truth for idempotency; a violation surfaces as
// apperr.ErrAlreadyLogged so concurrent redemptions collapse to one row.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendances (student_id, section_id, date, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+recordCols+`
	`, rec.StudentID, rec.SectionID, rec.Date.Format(dateLayout), rec.StartTime, rec.EndTime)
	out, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, fmt.Errorf("attendance exists for student %d section %d: %w",
				rec.StudentID, rec.SectionID, apperr.ErrAlreadyLogged)
		}
		return Record{}, err
	}
	return out, nil
}

// SetEndTime stamps the end time on an existing record.
func (r *Repository) SetEndTime(ctx context.Context, id int64, end time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE attendances SET end_time = $2 WHERE id = $1`, id, end)
	return err
}

// ByID returns a single record or apperr.ErrNotFound.
func (r *Repository) ByID(ctx context.Context, id int64) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordCols+` FROM attendances WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("attendance %d: %w", id, apperr.ErrNotFound)
	}
	return rec, err
}

// ByStudent lists a student's records, newest date first.
func (r *Repository) ByStudent(ctx context.Context, studentID int64) ([]Record, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM attendances WHERE student_id = $1 ORDER BY date DESC, start_time DESC`, studentID)
}

// BySection lists a section's records, newest date first.
func (r *Repository) BySection(ctx context.Context, sectionID int64) ([]Record, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM attendances WHERE section_id = $1 ORDER BY date DESC, start_time DESC`, sectionID)
}

// BySectionAndDate lists a section's records for one local calendar date.
func (r *Repository) BySectionAndDate(ctx context.Context, sectionID int64, date time.Time) ([]Record, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM attendances WHERE section_id = $1 AND date = $2 ORDER BY start_time`, sectionID, date.Format(dateLayout))
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Delete removes a record (admin path, never the redemption path).
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attendance %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
