package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// InsertNote adds a note to the local store. The note is persisted with
// pending status regardless of what the caller set; a freshly created
// record is by definition unconfirmed by the server.
func (s *Store) InsertNote(ctx context.Context, n *record.Note) error {
	n.SetDefaults()
	n.SyncStatus = record.StatusPending
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO notes (
			id, title, body, service_date, author_id, tags,
			audio_path, audio_url, sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID, n.Title, n.Body, timeToNullString(n.ServiceDate), n.AuthorID,
		string(tagsJSON), n.AudioPath, n.AudioURL, n.SyncStatus.String(),
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	return storageErr("insert note", err)
}

// NotePatch is a partial update for a note. Nil fields are left unchanged.
// SyncStatus is NOT auto-degraded by the store: callers set it to pending
// on user-initiated edits, and only the syncer flips it to synced.
type NotePatch struct {
	Title      *string
	Body       *string
	Tags       []string
	AudioPath  *string
	AudioURL   *string
	SyncStatus *record.SyncStatus
}

// UpdateNote merges the patch into an existing note and advances the
// update timestamp.
func (s *Store) UpdateNote(ctx context.Context, id string, patch NotePatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Body != nil {
		sets = append(sets, "body = ?")
		args = append(args, *patch.Body)
	}
	if patch.Tags != nil {
		tagsJSON, err := json.Marshal(patch.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if patch.AudioPath != nil {
		sets = append(sets, "audio_path = ?")
		args = append(args, *patch.AudioPath)
	}
	if patch.AudioURL != nil {
		sets = append(sets, "audio_url = ?")
		args = append(args, *patch.AudioURL)
	}
	if patch.SyncStatus != nil {
		if !patch.SyncStatus.Valid() {
			return fmt.Errorf("invalid sync status %q", *patch.SyncStatus)
		}
		sets = append(sets, "sync_status = ?")
		args = append(args, patch.SyncStatus.String())
	}

	args = append(args, id)
	res, err := s.conn.ExecContext(ctx,
		"UPDATE notes SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return storageErr("update note", err)
	}
	return requireRow(res, "note", id)
}

// AttachNoteAudio records a finished spool file against its note and
// returns the note to pending so the next pass uploads the blob.
func (s *Store) AttachNoteAudio(ctx context.Context, id, path string) error {
	pending := record.StatusPending
	return s.UpdateNote(ctx, id, NotePatch{AudioPath: &path, SyncStatus: &pending})
}

// MarkNoteSynced flips a note to synced. Only the syncer calls this.
func (s *Store) MarkNoteSynced(ctx context.Context, id string) error {
	synced := record.StatusSynced
	return s.UpdateNote(ctx, id, NotePatch{SyncStatus: &synced})
}

// GetNote retrieves a single note by id.
func (s *Store) GetNote(ctx context.Context, id string) (*record.Note, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, title, body, service_date, author_id, tags,
		       audio_path, audio_url, sync_status, created_at, updated_at
		FROM notes WHERE id = ?
	`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("get note", err)
	}
	return n, nil
}

// ListPendingNotes returns all notes awaiting upload, oldest first.
func (s *Store) ListPendingNotes(ctx context.Context) ([]*record.Note, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, title, body, service_date, author_id, tags,
		       audio_path, audio_url, sync_status, created_at, updated_at
		FROM notes WHERE sync_status = ? ORDER BY created_at ASC
	`, record.StatusPending.String())
	if err != nil {
		return nil, storageErr("list pending notes", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// NoteFilter configures ListNotes.
type NoteFilter struct {
	// Since keeps only notes created at or after this time (zero = all).
	Since time.Time
	// Limit restricts the number of results (0 = no limit).
	Limit int
	// Offset skips the first N results (for pagination).
	Offset int
}

// ListNotes retrieves notes newest first.
func (s *Store) ListNotes(ctx context.Context, filter NoteFilter) ([]*record.Note, error) {
	query := `
		SELECT id, title, body, service_date, author_id, tags,
		       audio_path, audio_url, sync_status, created_at, updated_at
		FROM notes
	`
	var args []any
	if !filter.Since.IsZero() {
		query += " WHERE created_at >= ?"
		args = append(args, formatTime(filter.Since))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list notes", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNote(row scannable) (*record.Note, error) {
	var n record.Note
	var serviceDate sql.NullString
	var tagsJSON, status, createdAt, updatedAt string

	err := row.Scan(
		&n.ID, &n.Title, &n.Body, &serviceDate, &n.AuthorID, &tagsJSON,
		&n.AudioPath, &n.AudioURL, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.ServiceDate = nullStringToTime(serviceDate)
	n.SyncStatus = record.SyncStatus(status)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)

	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	} else {
		n.Tags = []string{}
	}

	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]*record.Note, error) {
	var notes []*record.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, storageErr("scan note", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate notes", err)
	}
	return notes, nil
}

func requireRow(res sql.Result, entity, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}
