package appstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flockhq/flock/internal/record"
)

func TestLoadMissingFileIsZeroState(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), "state.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.MemberID != "" || !st.LastSyncAt.IsZero() {
		t.Errorf("Expected zero state, got %+v", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	now := time.Now().UTC().Truncate(time.Second)

	want := State{
		MemberID:   "m1",
		Role:       record.RoleLeader,
		LastSyncAt: now,
		PushToken:  "ExponentPushToken[abc]",
		Theme:      "dark",
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.MemberID != want.MemberID || got.Role != want.Role ||
		got.PushToken != want.PushToken || got.Theme != want.Theme {
		t.Errorf("Round trip mismatch: %+v vs %+v", got, want)
	}
	if !got.LastSyncAt.Equal(want.LastSyncAt) {
		t.Errorf("LastSyncAt mismatch: %v vs %v", got.LastSyncAt, want.LastSyncAt)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.toml")
	if err := Save(path, State{MemberID: "m1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("State file not created: %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.toml")
	for i := 0; i < 3; i++ {
		if err := Save(path, State{MemberID: "m1"}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only state.toml in dir, got %d entries", len(entries))
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for corrupt state file")
	}
}

func TestLoadRejectsInvalidRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	if err := os.WriteFile(path, []byte(`role = "superuser"`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid role")
	}
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	if err := Save(path, State{MemberID: "m1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	now := time.Now()
	err := Update(path, func(st *State) {
		st.LastSyncAt = now
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.MemberID != "m1" {
		t.Errorf("Update lost existing field: %+v", got)
	}
	if got.LastSyncAt.IsZero() {
		t.Error("Update did not persist new field")
	}
}
