package store

import (
	"context"
	"fmt"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// SyncPass is one journal row describing a completed upload pass for one
// entity. The journal is local-only diagnostics; it never syncs.
type SyncPass struct {
	ID          int64
	Entity      record.Entity
	Synced      int
	Failed      int
	BlobsFailed int
	TriggeredBy string
	StartedAt   time.Time
	Duration    time.Duration
}

// RecordPass appends a sync pass to the journal.
func (s *Store) RecordPass(ctx context.Context, p SyncPass) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO sync_passes (
			entity, synced, failed, blobs_failed,
			triggered_by, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(p.Entity), p.Synced, p.Failed, p.BlobsFailed,
		p.TriggeredBy, formatTime(p.StartedAt), p.Duration.Milliseconds(),
	)
	return storageErr("record sync pass", err)
}

// ListPasses returns the most recent journal entries, newest first.
func (s *Store) ListPasses(ctx context.Context, limit int) ([]SyncPass, error) {
	query := `
		SELECT id, entity, synced, failed, blobs_failed,
		       triggered_by, started_at, duration_ms
		FROM sync_passes ORDER BY id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list sync passes", err)
	}
	defer rows.Close()

	var passes []SyncPass
	for rows.Next() {
		var p SyncPass
		var entity, startedAt string
		var durationMS int64
		err := rows.Scan(
			&p.ID, &entity, &p.Synced, &p.Failed, &p.BlobsFailed,
			&p.TriggeredBy, &startedAt, &durationMS,
		)
		if err != nil {
			return nil, storageErr("scan sync pass", err)
		}
		p.Entity = record.Entity(entity)
		p.StartedAt = parseTime(startedAt)
		p.Duration = time.Duration(durationMS) * time.Millisecond
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate sync passes", err)
	}
	return passes, nil
}

// CountByStatus tallies records of one entity grouped by sync status.
// Members are not tracked; counting them returns an empty map.
func (s *Store) CountByStatus(ctx context.Context, entity record.Entity) (map[record.SyncStatus]int, error) {
	counts := make(map[record.SyncStatus]int)
	if entity == record.EntityMembers {
		return counts, nil
	}

	var table string
	switch entity {
	case record.EntityNotes:
		table = "notes"
	case record.EntityAttendance:
		table = "attendance"
	case record.EntityAnnouncements:
		table = "announcements"
	default:
		return nil, storageErr("count by status", fmt.Errorf("unknown entity %q", entity))
	}

	rows, err := s.conn.QueryContext(ctx,
		"SELECT sync_status, COUNT(*) FROM "+table+" GROUP BY sync_status")
	if err != nil {
		return nil, storageErr("count by status", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storageErr("scan status count", err)
		}
		counts[record.SyncStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate status counts", err)
	}
	return counts, nil
}
