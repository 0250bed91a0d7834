package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spot/internal/apperr"
)

// Section is a course offering with one assigned teacher. Section and
// enrollment management live outside this service; the attendance core only
// needs lookups plus the inserts used by seeding.
type Section struct {
	ID         int64     `json:"id"`
	CourseName string    `json:"course_name"`
	TeacherID  int64     `json:"teacher_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists sections and enrollments in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SectionByID returns a section or apperr.ErrNotFound.
func (r *Repository) SectionByID(ctx context.Context, id int64) (Section, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_name, teacher_id, created_at
		FROM sections WHERE id = $1
	`, id)
	var s Section
	if err := row.Scan(&s.ID, &s.CourseName, &s.TeacherID, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Section{}, fmt.Errorf("section %d: %w", id, apperr.ErrNotFound)
		}
		return Section{}, err
	}
	return s, nil
}

// IsEnrolled reports whether the student is enrolled in the section.
func (r *Repository) IsEnrolled(ctx context.Context, sectionID, studentID int64) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE section_id = $1 AND student_id = $2
		)
	`, sectionID, studentID)
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// CreateSection inserts a section and returns it.
func (r *Repository) CreateSection(ctx context.Context, courseName string, teacherID int64) (Section, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sections (course_name, teacher_id)
		VALUES ($1, $2)
		RETURNING id, course_name, teacher_id, created_at
	`, courseName, teacherID)
	var s Section
	if err := row.Scan(&s.ID, &s.CourseName, &s.TeacherID, &s.CreatedAt); err != nil {
		return Section{}, err
	}
	return s, nil
}

// Enroll adds a student to a section; enrolling twice is a no-op.
func (r *Repository) Enroll(ctx context.Context, sectionID, studentID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (section_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (section_id, student_id) DO NOTHING
	`, sectionID, studentID)
	return err
}
