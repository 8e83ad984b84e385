package record

import (
	"fmt"
	"time"
)

// Member is a row of the church member directory, cached locally for
// offline lookup. The cache is read-only on this side: it is refreshed
// wholesale from the server and never uploaded, so members carry a
// ServerUpdatedAt for staleness checks instead of participating in the
// pending/synced lifecycle.
type Member struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`

	// Approved reports whether the member has passed the join-approval
	// workflow. Unapproved members carry RolePending.
	Approved bool `json:"approved"`

	// ServerUpdatedAt is the last write time known from the server side.
	// Nil means the row was never fetched from the server.
	ServerUpdatedAt *time.Time `json:"server_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the member has valid field values.
func (m *Member) Validate() error {
	if err := requireID(m.ID); err != nil {
		return err
	}
	if m.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	return requireTimestamps(m.CreatedAt, m.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (m *Member) SetDefaults() {
	if m.Role == "" {
		m.Role = RolePending
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
}
