// Package record defines the syncable entity types held in the local store.
//
// Every entity carries a SyncStatus that tracks whether the local copy has
// been confirmed by the remote backend. Records are created offline with a
// locally generated id, which the remote side reuses as its primary key, so
// uploads are idempotent upserts.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks a record's relationship to the remote backend.
type SyncStatus string

const (
	// StatusPending marks a record created or modified locally and not yet
	// confirmed by the server.
	StatusPending SyncStatus = "pending"

	// StatusSynced marks a record whose last upload succeeded with no local
	// mutation since.
	StatusSynced SyncStatus = "synced"

	// StatusConflict is reserved for server-side divergence detection.
	// No implemented transition sets it; the syncer treats every upload
	// failure as transient and leaves the record pending.
	StatusConflict SyncStatus = "conflict"
)

// Valid reports whether s is one of the defined statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSynced, StatusConflict:
		return true
	}
	return false
}

// String returns the status as stored in the database.
func (s SyncStatus) String() string {
	return string(s)
}

// Entity names the syncable entity types. These double as local table
// names and remote collection names.
type Entity string

const (
	EntityNotes         Entity = "notes"
	EntityAttendance    Entity = "attendance"
	EntityAnnouncements Entity = "announcements"
	EntityMembers       Entity = "members"
)

// Uploadable lists the entity types the syncer pushes to the backend.
// Members are a read-only directory cache refreshed wholesale from the
// server and are never uploaded.
func Uploadable() []Entity {
	return []Entity{EntityNotes, EntityAttendance, EntityAnnouncements}
}

// NewID generates a record id locally, so offline-created records have a
// valid primary key before any server round-trip.
func NewID() string {
	return uuid.NewString()
}

// AttendanceStatus is the per-member status of one attendance record.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid reports whether a is one of the defined attendance statuses.
func (a AttendanceStatus) Valid() bool {
	switch a {
	case AttendancePresent, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

// Role is a member's role within the church, used for menu filtering and
// the approval workflow.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePastor  Role = "pastor"
	RoleLeader  Role = "leader"
	RoleMember  Role = "member"
	RolePending Role = "pending"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePastor, RoleLeader, RoleMember, RolePending:
		return true
	}
	return false
}

func requireID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

func requireTimestamps(createdAt, updatedAt time.Time) error {
	if createdAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if updatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}
