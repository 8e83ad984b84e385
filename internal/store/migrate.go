package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// migration is one released schema version. Migrations are additive only:
// a released entry is never edited, schema changes append a new version.
type migration struct {
	version string
	sql     string
}

// migrations is the ordered release history of the local schema.
var migrations = []migration{
	{
		version: "0001_core_tables",
		sql: `
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			service_date TEXT,
			author_id TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',  -- JSON array
			audio_path TEXT NOT NULL DEFAULT '',
			sync_status TEXT NOT NULL DEFAULT 'pending'
				CHECK (sync_status IN ('pending', 'synced', 'conflict')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS attendance (
			id TEXT PRIMARY KEY,
			member_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			service_date TEXT NOT NULL,
			status TEXT NOT NULL
				CHECK (status IN ('present', 'absent', 'excused')),
			recorded_by TEXT NOT NULL DEFAULT '',
			sync_status TEXT NOT NULL DEFAULT 'pending'
				CHECK (sync_status IN ('pending', 'synced', 'conflict')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS announcements (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			author_id TEXT NOT NULL DEFAULT '',
			publish_at TEXT,
			sync_status TEXT NOT NULL DEFAULT 'pending'
				CHECK (sync_status IN ('pending', 'synced', 'conflict')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS members (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'pending',
			approved INTEGER NOT NULL DEFAULT 0,
			server_updated_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_sync ON notes(sync_status);
		CREATE INDEX IF NOT EXISTS idx_attendance_sync ON attendance(sync_status);
		CREATE INDEX IF NOT EXISTS idx_attendance_member ON attendance(member_id);
		CREATE INDEX IF NOT EXISTS idx_attendance_service ON attendance(service_id);
		CREATE INDEX IF NOT EXISTS idx_announcements_sync ON announcements(sync_status);
		CREATE INDEX IF NOT EXISTS idx_members_role ON members(role);
		`,
	},
	{
		version: "0002_sync_passes",
		sql: `
		CREATE TABLE IF NOT EXISTS sync_passes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			blobs_failed INTEGER NOT NULL DEFAULT 0,
			triggered_by TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sync_passes_entity ON sync_passes(entity);
		`,
	},
	{
		version: "0003_notes_audio_url",
		sql: `
		ALTER TABLE notes ADD COLUMN audio_url TEXT NOT NULL DEFAULT '';
		`,
	},
}

// Migrate applies outstanding migrations inside transactions, recording
// each in schema_migrations. Safe to call repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return storageErr("ensure schema_migrations", err)
	}

	for _, m := range migrations {
		applied, err := s.isMigrated(ctx, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return storageErr(fmt.Sprintf("begin migration %s", m.version), err)
		}

		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return storageErr(fmt.Sprintf("execute migration %s", m.version), err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, formatTime(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return storageErr(fmt.Sprintf("record migration %s", m.version), err)
		}

		if err := tx.Commit(); err != nil {
			return storageErr(fmt.Sprintf("commit migration %s", m.version), err)
		}
	}

	return nil
}

// SchemaVersion returns the most recently applied migration version, or
// an empty string on a fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var version string
	err := s.conn.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", storageErr("read schema version", err)
	}
	return version, nil
}

func (s *Store) isMigrated(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := s.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`, version,
	).Scan(&exists)
	if err != nil {
		return false, storageErr(fmt.Sprintf("check migration %s", version), err)
	}
	return exists, nil
}
