package store

import "context"

// schema is applied at startup so a fresh database is usable without a
// migration tool. The two unique indexes are load-bearing: attendance
// idempotency and the one-active-token-per-session rule are enforced here,
// not in application code.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sections (
		id          BIGSERIAL PRIMARY KEY,
		course_name TEXT NOT NULL,
		teacher_id  BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id         BIGSERIAL PRIMARY KEY,
		section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
		student_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (section_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id          BIGSERIAL PRIMARY KEY,
		section_id  BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
		title       TEXT,
		description TEXT,
		status      TEXT NOT NULL DEFAULT 'SCHEDULED',
		is_active   BOOLEAN NOT NULL DEFAULT FALSE,
		start_time  TIMESTAMPTZ,
		end_time    TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS qr_codes (
		id           BIGSERIAL PRIMARY KEY,
		value        TEXT NOT NULL UNIQUE,
		session_id   BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		generated_at TIMESTAMPTZ NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS qr_codes_one_active_per_session
		ON qr_codes (session_id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS attendances (
		id         BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL,
		section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
		date       DATE NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ,
		UNIQUE (student_id, section_id, date)
	)`,
}

// Migrate applies the schema statements in order.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
