package store

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          BIGSERIAL PRIMARY KEY,
		username    TEXT UNIQUE NOT NULL,
		password    TEXT NOT NULL,
		role        TEXT NOT NULL,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL DEFAULT '',
		rollno      TEXT NOT NULL DEFAULT '',
		section     TEXT NOT NULL DEFAULT '',
		department  TEXT NOT NULL DEFAULT '',
		class_name  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		faculty_id  BIGINT REFERENCES users (id) ON DELETE SET NULL,
		schedule    TEXT NOT NULL DEFAULT '',
		room        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id          BIGSERIAL PRIMARY KEY,
		student_id  BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		faculty_id  BIGINT REFERENCES users (id) ON DELETE SET NULL,
		date        TEXT NOT NULL,
		reason      TEXT NOT NULL,
		proof       TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'pending',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id          BIGSERIAL PRIMARY KEY,
		student_id  BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		class_id    BIGINT REFERENCES classes (id) ON DELETE SET NULL,
		date        TEXT NOT NULL,
		status      TEXT NOT NULL,
		marked_by   BIGINT REFERENCES users (id) ON DELETE SET NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS clubs_events (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		type        TEXT NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance (date, marked_by)`,
	`CREATE INDEX IF NOT EXISTS idx_permissions_faculty ON permissions (faculty_id, status)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		username    TEXT UNIQUE NOT NULL,
		password    TEXT NOT NULL,
		role        TEXT NOT NULL,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL DEFAULT '',
		rollno      TEXT NOT NULL DEFAULT '',
		section     TEXT NOT NULL DEFAULT '',
		department  TEXT NOT NULL DEFAULT '',
		class_name  TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		faculty_id  INTEGER REFERENCES users (id) ON DELETE SET NULL,
		schedule    TEXT NOT NULL DEFAULT '',
		room        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id  INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		faculty_id  INTEGER REFERENCES users (id) ON DELETE SET NULL,
		date        TEXT NOT NULL,
		reason      TEXT NOT NULL,
		proof       TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'pending',
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id  INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		class_id    INTEGER REFERENCES classes (id) ON DELETE SET NULL,
		date        TEXT NOT NULL,
		status      TEXT NOT NULL,
		marked_by   INTEGER REFERENCES users (id) ON DELETE SET NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS clubs_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		type        TEXT NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance (date, marked_by)`,
	`CREATE INDEX IF NOT EXISTS idx_permissions_faculty ON permissions (faculty_id, status)`,
}

// Migrate creates the portal tables if they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if d.Driver == "sqlite3" {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
