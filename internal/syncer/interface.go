// Package syncer uploads pending local records to the remote backend.
//
// The engine is a last-writer-wins push queue. Records are keyed by their
// locally generated id, so every upload is an idempotent upsert: repeating
// a pass after a partial failure re-sends only what is still pending and
// never duplicates rows.
//
// The engine is resilient per record. One record's failure is counted and
// skipped; the pass continues with the rest. Failed records simply stay
// pending and ride along on the next pass. There is no backoff, retry cap,
// or dead-letter state.
package syncer

import (
	"context"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// PassResult summarizes one upload pass over a single entity.
type PassResult struct {
	Entity record.Entity `json:"entity"`

	// Synced counts records confirmed by the server this pass.
	Synced int `json:"synced"`

	// Failed counts records whose upsert failed; they remain pending.
	Failed int `json:"failed"`

	// BlobsFailed counts notes whose audio upload failed while the
	// metadata upsert succeeded. Those notes are synced without an audio
	// URL until a later edit re-queues them.
	BlobsFailed int `json:"blobs_failed"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Engine is the sync surface the daemon and CLI depend on.
type Engine interface {
	// SyncEntity runs one upload pass over a single entity's pending
	// records. Returns the pass counts; the error is non-nil only when
	// the pending queue itself cannot be read.
	SyncEntity(ctx context.Context, entity record.Entity) (PassResult, error)

	// SyncAll runs one pass over every uploadable entity, the entity
	// passes running concurrently and independently. A trigger that
	// arrives while a sync is in flight is dropped, not queued; it
	// returns ErrSyncInFlight. The trigger label lands in the journal.
	SyncAll(ctx context.Context, trigger string) ([]PassResult, error)

	// RefreshMembers replaces the local member directory cache with the
	// server's current rows. Returns the row count.
	RefreshMembers(ctx context.Context) (int, error)

	// InFlight reports whether a sync pass is currently running.
	InFlight() bool
}
