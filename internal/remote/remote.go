// Package remote talks to the hosted backend: a PostgREST-style REST API
// for record collections and an S3-compatible object store for audio blobs.
//
// Callers treat every failure as opaque and transient. RemoteError
// deliberately exposes no retryable/fatal distinction; the syncer's only
// response to any remote failure is to leave the record pending for the
// next pass.
package remote

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// RemoteError wraps any backend failure: network, HTTP status, or decode.
// The message is for logs; no caller branches on its contents.
type RemoteError struct {
	Op         string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote: %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteErr(op string, status int, err error) error {
	return &RemoteError{Op: op, StatusCode: status, Err: err}
}

// SelectOptions filters and pages a collection read.
type SelectOptions struct {
	// Filters maps column name to a PostgREST operator expression,
	// e.g. {"role": "eq.leader", "updated_at": "gte.2026-01-01"}.
	Filters map[string]string
	// Order is a column list like "updated_at.desc" ("" = server default).
	Order string
	// Limit caps the page size (0 = server default).
	Limit int
	// Offset is the page start for range pagination.
	Offset int
}

// Service is the backend surface the syncer depends on. Implementations
// must make Upsert idempotent: re-sending a payload keyed by the same id
// merges rather than duplicates.
type Service interface {
	// Upsert writes one record payload into the named collection, keyed
	// by the payload's "id". Safe to repeat.
	Upsert(ctx context.Context, entity record.Entity, payload map[string]any) error

	// Select reads rows from the named collection as raw JSON objects.
	Select(ctx context.Context, entity record.Entity, opts SelectOptions) ([]map[string]any, error)

	// UploadBlob streams an object into blob storage under the given key
	// and returns its public URL. Safe to repeat: re-uploading a key
	// overwrites the same object.
	UploadBlob(ctx context.Context, key string, contentType string, size int64, body io.Reader) (string, error)

	// Ping performs a cheap reachability probe without side effects.
	Ping(ctx context.Context) error
}

// Members decodes a Select result from the members collection into
// directory rows. Rows that fail to decode are skipped and counted, not
// fatal; a directory refresh should survive one malformed row.
func Members(rows []map[string]any) (members []*record.Member, skipped int) {
	for _, row := range rows {
		m, err := memberFromRow(row)
		if err != nil {
			skipped++
			continue
		}
		members = append(members, m)
	}
	return members, skipped
}

func memberFromRow(row map[string]any) (*record.Member, error) {
	id, _ := row["id"].(string)
	name, _ := row["full_name"].(string)
	if id == "" || name == "" {
		return nil, fmt.Errorf("member row missing id or full_name")
	}

	m := &record.Member{
		ID:       id,
		FullName: name,
	}
	if v, ok := row["email"].(string); ok {
		m.Email = v
	}
	if v, ok := row["phone"].(string); ok {
		m.Phone = v
	}
	if v, ok := row["role"].(string); ok {
		m.Role = record.Role(v)
	}
	if v, ok := row["approved"].(bool); ok {
		m.Approved = v
	}
	if v, ok := row["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			m.ServerUpdatedAt = &t
		}
	}
	m.SetDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
