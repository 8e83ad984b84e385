package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// InsertAnnouncement adds an announcement with pending status.
func (s *Store) InsertAnnouncement(ctx context.Context, an *record.Announcement) error {
	an.SetDefaults()
	an.SyncStatus = record.StatusPending
	if err := an.Validate(); err != nil {
		return fmt.Errorf("invalid announcement: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO announcements (
			id, title, body, author_id, publish_at,
			sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		an.ID, an.Title, an.Body, an.AuthorID, timeToNullString(an.PublishAt),
		an.SyncStatus.String(), formatTime(an.CreatedAt), formatTime(an.UpdatedAt),
	)
	return storageErr("insert announcement", err)
}

// AnnouncementPatch is a partial update for an announcement. Nil fields
// are left unchanged; SyncStatus follows the same contract as NotePatch.
type AnnouncementPatch struct {
	Title      *string
	Body       *string
	PublishAt  *time.Time
	SyncStatus *record.SyncStatus
}

// UpdateAnnouncement merges the patch into an existing announcement.
func (s *Store) UpdateAnnouncement(ctx context.Context, id string, patch AnnouncementPatch) error {
	sets := "updated_at = ?"
	args := []any{formatTime(time.Now())}

	if patch.Title != nil {
		sets += ", title = ?"
		args = append(args, *patch.Title)
	}
	if patch.Body != nil {
		sets += ", body = ?"
		args = append(args, *patch.Body)
	}
	if patch.PublishAt != nil {
		sets += ", publish_at = ?"
		args = append(args, formatTime(*patch.PublishAt))
	}
	if patch.SyncStatus != nil {
		if !patch.SyncStatus.Valid() {
			return fmt.Errorf("invalid sync status %q", *patch.SyncStatus)
		}
		sets += ", sync_status = ?"
		args = append(args, patch.SyncStatus.String())
	}

	args = append(args, id)
	res, err := s.conn.ExecContext(ctx,
		"UPDATE announcements SET "+sets+" WHERE id = ?", args...)
	if err != nil {
		return storageErr("update announcement", err)
	}
	return requireRow(res, "announcement", id)
}

// MarkAnnouncementSynced flips an announcement to synced. Only the syncer
// calls this.
func (s *Store) MarkAnnouncementSynced(ctx context.Context, id string) error {
	synced := record.StatusSynced
	return s.UpdateAnnouncement(ctx, id, AnnouncementPatch{SyncStatus: &synced})
}

// GetAnnouncement retrieves a single announcement by id.
func (s *Store) GetAnnouncement(ctx context.Context, id string) (*record.Announcement, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, title, body, author_id, publish_at,
		       sync_status, created_at, updated_at
		FROM announcements WHERE id = ?
	`, id)
	an, err := scanAnnouncement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("announcement %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("get announcement", err)
	}
	return an, nil
}

// ListPendingAnnouncements returns all announcements awaiting upload,
// oldest first.
func (s *Store) ListPendingAnnouncements(ctx context.Context) ([]*record.Announcement, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, title, body, author_id, publish_at,
		       sync_status, created_at, updated_at
		FROM announcements WHERE sync_status = ? ORDER BY created_at ASC
	`, record.StatusPending.String())
	if err != nil {
		return nil, storageErr("list pending announcements", err)
	}
	defer rows.Close()

	var list []*record.Announcement
	for rows.Next() {
		an, err := scanAnnouncement(rows)
		if err != nil {
			return nil, storageErr("scan announcement", err)
		}
		list = append(list, an)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate announcements", err)
	}
	return list, nil
}

func scanAnnouncement(row scannable) (*record.Announcement, error) {
	var an record.Announcement
	var publishAt sql.NullString
	var status, createdAt, updatedAt string

	err := row.Scan(
		&an.ID, &an.Title, &an.Body, &an.AuthorID, &publishAt,
		&status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	an.PublishAt = nullStringToTime(publishAt)
	an.SyncStatus = record.SyncStatus(status)
	an.CreatedAt = parseTime(createdAt)
	an.UpdatedAt = parseTime(updatedAt)
	return &an, nil
}
