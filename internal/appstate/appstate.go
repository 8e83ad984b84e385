// Package appstate persists small pieces of UI and session state that must
// survive restarts but do not belong in the record store: the signed-in
// member, the last successful sync, interface preferences.
//
// State lives in one TOML file. Saves go through a temp file and rename,
// so a crash mid-write leaves the previous state intact.
package appstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/flockhq/flock/internal/record"
)

// State is everything persisted between runs.
type State struct {
	// MemberID is the signed-in member, empty before first sign-in.
	MemberID string `toml:"member_id,omitempty"`

	// Role is the signed-in member's cached role, used for menu
	// filtering before the directory cache is warm.
	Role record.Role `toml:"role,omitempty"`

	// LastSyncAt is when the last successful sync pass finished.
	LastSyncAt time.Time `toml:"last_sync_at,omitempty"`

	// LastMemberRefreshAt is when the member directory was last pulled.
	LastMemberRefreshAt time.Time `toml:"last_member_refresh_at,omitempty"`

	// PushToken is this device's notification token, if registered.
	PushToken string `toml:"push_token,omitempty"`

	// Theme is the UI color preference ("" = terminal default).
	Theme string `toml:"theme,omitempty"`
}

// Load reads state from path. A missing file is not an error; it returns
// zero state, matching a fresh install.
func Load(path string) (State, error) {
	var st State
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := toml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to parse state file: %w", err)
	}
	if st.Role != "" && !st.Role.Valid() {
		return State{}, fmt.Errorf("state file has invalid role %q", st.Role)
	}
	return st, nil
}

// Save writes state to path atomically.
func Save(path string, st State) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(st); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Update loads, applies fn, and saves in one call.
func Update(path string, fn func(*State)) error {
	st, err := Load(path)
	if err != nil {
		return err
	}
	fn(&st)
	return Save(path, st)
}
