package record

import (
	"fmt"
	"time"
)

// Attendance is one member's attendance mark for one service, recorded
// locally (often offline during the service) and uploaded later.
type Attendance struct {
	ID          string           `json:"id"`
	MemberID    string           `json:"member_id"`
	ServiceID   string           `json:"service_id"`
	ServiceDate time.Time        `json:"service_date"`
	Status      AttendanceStatus `json:"status"`
	RecordedBy  string           `json:"recorded_by,omitempty"`

	SyncStatus SyncStatus `json:"sync_status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks that the attendance record has valid field values.
func (a *Attendance) Validate() error {
	if err := requireID(a.ID); err != nil {
		return err
	}
	if a.MemberID == "" {
		return fmt.Errorf("member_id is required")
	}
	if a.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if a.ServiceDate.IsZero() {
		return fmt.Errorf("service_date is required")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid attendance status %q", a.Status)
	}
	if !a.SyncStatus.Valid() {
		return fmt.Errorf("invalid sync status %q", a.SyncStatus)
	}
	return requireTimestamps(a.CreatedAt, a.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (a *Attendance) SetDefaults() {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.SyncStatus == "" {
		a.SyncStatus = StatusPending
	}
	if a.Status == "" {
		a.Status = AttendancePresent
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
}

// Touch records a local edit.
func (a *Attendance) Touch() {
	a.UpdatedAt = time.Now()
	a.SyncStatus = StatusPending
}

// Payload returns the fields uploaded to the remote attendance collection.
func (a *Attendance) Payload() map[string]any {
	return map[string]any{
		"id":           a.ID,
		"member_id":    a.MemberID,
		"service_id":   a.ServiceID,
		"service_date": a.ServiceDate.UTC().Format(time.RFC3339),
		"status":       string(a.Status),
		"recorded_by":  a.RecordedBy,
		"created_at":   a.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":   a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
