// Package importer loads a member roster export into the local directory
// cache. Churches moving off spreadsheets export JSONL, one member per
// line; the importer validates each row and swaps the cache wholesale.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/flockhq/flock/internal/record"
	"github.com/flockhq/flock/internal/store"
)

// memberRow is one JSONL line of the roster export.
type memberRow struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
	Approved bool   `json:"approved,omitempty"`
}

// Options configures an import.
type Options struct {
	// Path is the JSONL roster file.
	Path string
	// DryRun validates and counts without touching the cache.
	DryRun bool
}

// Result summarizes an import.
type Result struct {
	// Imported counts rows written to the cache (or that would be, on
	// dry run).
	Imported int
	// Skipped counts invalid rows.
	Skipped int
	// Errors describes each skipped row.
	Errors []string
}

// Import reads the roster and replaces the member cache. Invalid rows are
// skipped with a per-row error; the import fails outright only when the
// file itself is unreadable or no row survives.
func Import(ctx context.Context, st *store.Store, opts Options) (*Result, error) {
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	defer f.Close()

	result := &Result{}
	var members []*record.Member
	seen := make(map[string]bool)

	decoder := json.NewDecoder(f)
	line := 0
	for {
		var row memberRow
		if err := decoder.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at entry %d: %w", line+1, err)
		}
		line++

		m, err := rowToMember(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: %v", line, err))
			continue
		}
		if seen[m.ID] {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: duplicate id %s", line, m.ID))
			continue
		}
		seen[m.ID] = true
		members = append(members, m)
	}

	if len(members) == 0 {
		return result, fmt.Errorf("no valid members in %s", opts.Path)
	}

	result.Imported = len(members)
	if opts.DryRun {
		return result, nil
	}

	if err := st.ReplaceMembers(ctx, members); err != nil {
		return result, fmt.Errorf("failed to replace member cache: %w", err)
	}
	return result, nil
}

func rowToMember(row memberRow) (*record.Member, error) {
	if row.ID == "" {
		// Rosters exported without ids get locally generated ones; the
		// server adopts them on first upload.
		row.ID = record.NewID()
	}

	now := time.Now()
	m := &record.Member{
		ID:        row.ID,
		FullName:  row.FullName,
		Email:     row.Email,
		Phone:     row.Phone,
		Role:      record.Role(row.Role),
		Approved:  row.Approved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.SetDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
