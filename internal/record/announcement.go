package record

import (
	"fmt"
	"time"
)

// Announcement is a congregation-wide notice, optionally scheduled for a
// future publish time. Announcements drafted offline upload on the next
// sync pass like any other pending record.
type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	AuthorID  string     `json:"author_id,omitempty"`
	PublishAt *time.Time `json:"publish_at,omitempty"`

	SyncStatus SyncStatus `json:"sync_status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks that the announcement has valid field values.
func (an *Announcement) Validate() error {
	if err := requireID(an.ID); err != nil {
		return err
	}
	if an.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(an.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(an.Title))
	}
	if !an.SyncStatus.Valid() {
		return fmt.Errorf("invalid sync status %q", an.SyncStatus)
	}
	return requireTimestamps(an.CreatedAt, an.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (an *Announcement) SetDefaults() {
	if an.ID == "" {
		an.ID = NewID()
	}
	if an.SyncStatus == "" {
		an.SyncStatus = StatusPending
	}
	now := time.Now()
	if an.CreatedAt.IsZero() {
		an.CreatedAt = now
	}
	if an.UpdatedAt.IsZero() {
		an.UpdatedAt = now
	}
}

// Touch records a local edit.
func (an *Announcement) Touch() {
	an.UpdatedAt = time.Now()
	an.SyncStatus = StatusPending
}

// Payload returns the fields uploaded to the remote announcements collection.
func (an *Announcement) Payload() map[string]any {
	p := map[string]any{
		"id":         an.ID,
		"title":      an.Title,
		"body":       an.Body,
		"author_id":  an.AuthorID,
		"created_at": an.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": an.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if an.PublishAt != nil {
		p["publish_at"] = an.PublishAt.UTC().Format(time.RFC3339)
	}
	return p
}
