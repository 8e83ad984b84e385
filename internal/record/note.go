package record

import (
	"fmt"
	"time"
)

// Note is a sermon note. Notes may carry an audio recording captured
// offline: AudioPath points at the local spool file, AudioURL is set only
// after the blob reaches remote storage. The two are reconciled by the
// sync pass, which uploads the blob before patching the URL into the
// remote row.
type Note struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	ServiceDate *time.Time `json:"service_date,omitempty"`
	AuthorID    string     `json:"author_id,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	// AudioPath is the local spool file for a recorded audio attachment.
	// Empty when the note has no recording.
	AudioPath string `json:"audio_path,omitempty"`

	// AudioURL is the public URL of the uploaded recording. Empty until a
	// blob upload succeeds; a note can legitimately be synced with
	// AudioPath set and AudioURL empty when the blob upload failed while
	// the metadata upsert succeeded.
	AudioURL string `json:"audio_url,omitempty"`

	SyncStatus SyncStatus `json:"sync_status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks that the note has valid field values.
func (n *Note) Validate() error {
	if err := requireID(n.ID); err != nil {
		return err
	}
	if n.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(n.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(n.Title))
	}
	if !n.SyncStatus.Valid() {
		return fmt.Errorf("invalid sync status %q", n.SyncStatus)
	}
	return requireTimestamps(n.CreatedAt, n.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (n *Note) SetDefaults() {
	if n.ID == "" {
		n.ID = NewID()
	}
	if n.SyncStatus == "" {
		n.SyncStatus = StatusPending
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
}

// Touch records a local edit: the update timestamp advances and the note
// drops back to pending until the next successful upload.
func (n *Note) Touch() {
	n.UpdatedAt = time.Now()
	n.SyncStatus = StatusPending
}

// Payload returns the fields uploaded to the remote notes collection.
// AudioURL is included only when set; the remote row keeps whatever audio
// reference it already has otherwise.
func (n *Note) Payload() map[string]any {
	p := map[string]any{
		"id":         n.ID,
		"title":      n.Title,
		"body":       n.Body,
		"author_id":  n.AuthorID,
		"tags":       n.Tags,
		"created_at": n.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": n.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if n.ServiceDate != nil {
		p["service_date"] = n.ServiceDate.UTC().Format(time.RFC3339)
	}
	if n.AudioURL != "" {
		p["audio_url"] = n.AudioURL
	}
	return p
}
