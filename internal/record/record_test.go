package record

import (
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()

	if a == "" || b == "" {
		t.Fatal("NewID() returned empty id")
	}
	if a == b {
		t.Errorf("NewID() returned duplicate ids: %s", a)
	}
}

func TestSyncStatusValid(t *testing.T) {
	tests := []struct {
		status SyncStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusSynced, true},
		{StatusConflict, true},
		{SyncStatus(""), false},
		{SyncStatus("failed"), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("SyncStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestUploadableExcludesMembers(t *testing.T) {
	for _, e := range Uploadable() {
		if e == EntityMembers {
			t.Error("members are a read-only cache and must not be uploadable")
		}
	}
}

func TestNoteValidate(t *testing.T) {
	now := time.Now()

	valid := func() *Note {
		return &Note{
			ID:         NewID(),
			Title:      "Sunday sermon",
			SyncStatus: StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Note)
		wantErr bool
	}{
		{"valid", func(n *Note) {}, false},
		{"missing id", func(n *Note) { n.ID = "" }, true},
		{"missing title", func(n *Note) { n.Title = "" }, true},
		{"bad status", func(n *Note) { n.SyncStatus = "uploaded" }, true},
		{"zero created_at", func(n *Note) { n.CreatedAt = time.Time{} }, true},
		{"conflict status is a defined state", func(n *Note) { n.SyncStatus = StatusConflict }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid()
			tt.mutate(n)
			err := n.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNoteSetDefaults(t *testing.T) {
	var n Note
	n.Title = "Grace and truth"
	n.SetDefaults()

	if n.ID == "" {
		t.Error("SetDefaults() did not generate an id")
	}
	if n.SyncStatus != StatusPending {
		t.Errorf("SetDefaults() status = %q, want pending", n.SyncStatus)
	}
	if n.CreatedAt.IsZero() || n.UpdatedAt.IsZero() {
		t.Error("SetDefaults() did not set timestamps")
	}
	if err := n.Validate(); err != nil {
		t.Errorf("note invalid after SetDefaults(): %v", err)
	}
}

func TestNoteTouchReturnsToPending(t *testing.T) {
	n := Note{Title: "t"}
	n.SetDefaults()
	n.SyncStatus = StatusSynced
	before := n.UpdatedAt

	time.Sleep(time.Millisecond)
	n.Touch()

	if n.SyncStatus != StatusPending {
		t.Errorf("Touch() status = %q, want pending", n.SyncStatus)
	}
	if !n.UpdatedAt.After(before) {
		t.Error("Touch() did not advance UpdatedAt")
	}
}

func TestNotePayloadAudioURL(t *testing.T) {
	n := Note{Title: "t", AudioPath: "/spool/n1.m4a"}
	n.SetDefaults()

	if _, ok := n.Payload()["audio_url"]; ok {
		t.Error("payload must omit audio_url until a blob upload succeeds")
	}

	n.AudioURL = "https://blobs.example.com/audio/n1.m4a"
	if got := n.Payload()["audio_url"]; got != n.AudioURL {
		t.Errorf("payload audio_url = %v, want %s", got, n.AudioURL)
	}
}

func TestAttendanceValidate(t *testing.T) {
	now := time.Now()

	valid := func() *Attendance {
		return &Attendance{
			ID:          NewID(),
			MemberID:    "m1",
			ServiceID:   "svc-2026-08-23",
			ServiceDate: now,
			Status:      AttendancePresent,
			SyncStatus:  StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Attendance)
		wantErr bool
	}{
		{"valid", func(a *Attendance) {}, false},
		{"missing member", func(a *Attendance) { a.MemberID = "" }, true},
		{"missing service", func(a *Attendance) { a.ServiceID = "" }, true},
		{"bad attendance status", func(a *Attendance) { a.Status = "late" }, true},
		{"excused", func(a *Attendance) { a.Status = AttendanceExcused }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid()
			tt.mutate(a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemberValidate(t *testing.T) {
	now := time.Now()
	m := Member{
		ID:        "m1",
		FullName:  "Ada Obi",
		Role:      RoleLeader,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	m.Role = "elder"
	if err := m.Validate(); err == nil {
		t.Error("Validate() accepted unknown role")
	}
}

func TestMemberSetDefaultsPendingRole(t *testing.T) {
	var m Member
	m.SetDefaults()
	if m.Role != RolePending {
		t.Errorf("new members default to pending role, got %q", m.Role)
	}
}

func TestAnnouncementPayloadPublishAt(t *testing.T) {
	an := Announcement{Title: "Potluck"}
	an.SetDefaults()

	if _, ok := an.Payload()["publish_at"]; ok {
		t.Error("payload must omit publish_at when unscheduled")
	}

	at := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)
	an.PublishAt = &at
	if got := an.Payload()["publish_at"]; got != "2026-09-04T09:00:00Z" {
		t.Errorf("payload publish_at = %v", got)
	}
}
