package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flockhq/flock/internal/bus"
	"github.com/flockhq/flock/internal/record"
	"github.com/flockhq/flock/internal/remote"
	"github.com/flockhq/flock/internal/store"
)

// ErrSyncInFlight is returned by SyncAll when a pass is already running.
// The trigger is dropped; whatever the running pass misses stays pending
// and is picked up by the next trigger.
var ErrSyncInFlight = errors.New("sync already in flight")

// Config holds syncer configuration.
type Config struct {
	// PageSize caps how many member rows are fetched per directory
	// refresh page.
	PageSize int
}

// DefaultConfig returns the default syncer configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: 500,
	}
}

// Syncer is the production Engine implementation backed by the local
// store and the remote backend.
type Syncer struct {
	config  Config
	store   *store.Store
	backend remote.Service
	events  *bus.Bus
	logger  *log.Logger

	inFlight atomic.Bool
	dropped  atomic.Int64
}

// New creates a syncer. events may be nil when no UI listens; a nil
// logger disables logging.
func New(config Config, st *store.Store, backend remote.Service, events *bus.Bus, logger *log.Logger) *Syncer {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Syncer{
		config:  config,
		store:   st,
		backend: backend,
		events:  events,
		logger:  logger,
	}
}

// InFlight reports whether a SyncAll pass is currently running.
func (s *Syncer) InFlight() bool {
	return s.inFlight.Load()
}

// DroppedTriggers reports how many SyncAll calls were dropped because a
// pass was already in flight.
func (s *Syncer) DroppedTriggers() int64 {
	return s.dropped.Load()
}

// SyncAll runs one pass per uploadable entity, concurrently. Entities
// are independent queues with no ordering between them; within a pass,
// records still upload oldest first. Concurrent triggers are dropped,
// not queued: the guard is a single atomic flag, so exactly one caller
// wins.
func (s *Syncer) SyncAll(ctx context.Context, trigger string) ([]PassResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		s.logger.Printf("sync trigger %q dropped: pass in flight", trigger)
		return nil, ErrSyncInFlight
	}
	defer s.inFlight.Store(false)

	s.publish(bus.TopicSyncStarted, map[string]any{"trigger": trigger})

	var (
		mu      sync.Mutex
		results []PassResult
		wg      sync.WaitGroup
	)
	for _, entity := range record.Uploadable() {
		wg.Add(1)
		go func(entity record.Entity) {
			defer wg.Done()

			result, err := s.syncEntity(ctx, entity)
			if err != nil {
				// The pending queue itself was unreadable. Skip the entity;
				// its records are untouched and still pending.
				s.logger.Printf("sync %s: %v", entity, err)
				return
			}

			if err := s.store.RecordPass(ctx, store.SyncPass{
				Entity:      result.Entity,
				Synced:      result.Synced,
				Failed:      result.Failed,
				BlobsFailed: result.BlobsFailed,
				TriggeredBy: trigger,
				StartedAt:   result.StartedAt,
				Duration:    result.Duration,
			}); err != nil {
				s.logger.Printf("journal %s: %v", entity, err)
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(entity)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	summary := map[string]any{"trigger": trigger}
	for _, r := range results {
		summary[string(r.Entity)] = map[string]any{"synced": r.Synced, "failed": r.Failed}
	}
	s.publish(bus.TopicSyncFinished, summary)

	return results, nil
}

// SyncEntity runs one pass over a single entity, sharing the in-flight
// guard with SyncAll.
func (s *Syncer) SyncEntity(ctx context.Context, entity record.Entity) (PassResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return PassResult{}, ErrSyncInFlight
	}
	defer s.inFlight.Store(false)

	return s.syncEntity(ctx, entity)
}

func (s *Syncer) syncEntity(ctx context.Context, entity record.Entity) (PassResult, error) {
	result := PassResult{Entity: entity, StartedAt: time.Now()}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
	}()

	switch entity {
	case record.EntityNotes:
		return s.syncNotes(ctx, result)
	case record.EntityAttendance:
		return s.syncAttendance(ctx, result)
	case record.EntityAnnouncements:
		return s.syncAnnouncements(ctx, result)
	default:
		return result, fmt.Errorf("entity %s is not uploadable", entity)
	}
}

func (s *Syncer) syncNotes(ctx context.Context, result PassResult) (PassResult, error) {
	pending, err := s.store.ListPendingNotes(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list pending notes: %w", err)
	}

	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		// The blob upload happens before the metadata upsert but is not
		// atomic with it. When the blob fails, the note still syncs
		// without an audio URL; re-attaching the recording later
		// re-queues it.
		audioURL := n.AudioURL
		if n.AudioPath != "" && n.AudioURL == "" {
			url, err := s.uploadAudio(ctx, n.ID, n.AudioPath)
			if err != nil {
				result.BlobsFailed++
				s.logger.Printf("audio upload for note %s: %v", n.ID, err)
			} else {
				audioURL = url
			}
		}

		payload := n.Payload()
		if audioURL != "" {
			payload["audio_url"] = audioURL
		}

		if err := s.backend.Upsert(ctx, record.EntityNotes, payload); err != nil {
			result.Failed++
			s.logger.Printf("upsert note %s: %v", n.ID, err)
			continue
		}

		synced := record.StatusSynced
		patch := store.NotePatch{SyncStatus: &synced}
		if audioURL != n.AudioURL {
			patch.AudioURL = &audioURL
		}
		if err := s.store.UpdateNote(ctx, n.ID, patch); err != nil {
			// The server has the record but the local flag is stale; the
			// next pass re-upserts harmlessly.
			result.Failed++
			s.logger.Printf("mark note %s synced: %v", n.ID, err)
			continue
		}
		result.Synced++
	}

	return result, nil
}

func (s *Syncer) syncAttendance(ctx context.Context, result PassResult) (PassResult, error) {
	pending, err := s.store.ListPendingAttendance(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list pending attendance: %w", err)
	}

	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.backend.Upsert(ctx, record.EntityAttendance, a.Payload()); err != nil {
			result.Failed++
			s.logger.Printf("upsert attendance %s: %v", a.ID, err)
			continue
		}
		if err := s.store.MarkAttendanceSynced(ctx, a.ID); err != nil {
			result.Failed++
			s.logger.Printf("mark attendance %s synced: %v", a.ID, err)
			continue
		}
		result.Synced++
	}

	return result, nil
}

func (s *Syncer) syncAnnouncements(ctx context.Context, result PassResult) (PassResult, error) {
	pending, err := s.store.ListPendingAnnouncements(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list pending announcements: %w", err)
	}

	for _, an := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.backend.Upsert(ctx, record.EntityAnnouncements, an.Payload()); err != nil {
			result.Failed++
			s.logger.Printf("upsert announcement %s: %v", an.ID, err)
			continue
		}
		if err := s.store.MarkAnnouncementSynced(ctx, an.ID); err != nil {
			result.Failed++
			s.logger.Printf("mark announcement %s synced: %v", an.ID, err)
			continue
		}
		result.Synced++
	}

	return result, nil
}

// uploadAudio streams a spooled recording into blob storage under a key
// derived from the note id, so retries overwrite instead of duplicating.
func (s *Syncer) uploadAudio(ctx context.Context, noteID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat audio file: %w", err)
	}

	key := "audio/" + noteID + filepath.Ext(path)
	return s.backend.UploadBlob(ctx, key, audioContentType(path), info.Size(), f)
}

func audioContentType(path string) string {
	switch filepath.Ext(path) {
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// RefreshMembers pulls the full member directory from the server, paging
// through it, and swaps the local cache in one transaction.
func (s *Syncer) RefreshMembers(ctx context.Context) (int, error) {
	var all []*record.Member
	offset := 0
	for {
		rows, err := s.backend.Select(ctx, record.EntityMembers, remote.SelectOptions{
			Order:  "full_name.asc",
			Limit:  s.config.PageSize,
			Offset: offset,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to fetch members: %w", err)
		}

		members, skipped := remote.Members(rows)
		if skipped > 0 {
			s.logger.Printf("member refresh: skipped %d malformed rows", skipped)
		}
		all = append(all, members...)

		if len(rows) < s.config.PageSize {
			break
		}
		offset += s.config.PageSize
	}

	if err := s.store.ReplaceMembers(ctx, all); err != nil {
		return 0, fmt.Errorf("failed to replace member cache: %w", err)
	}
	return len(all), nil
}

func (s *Syncer) publish(topic bus.Topic, payload map[string]any) {
	if s.events != nil {
		s.events.Publish(topic, payload)
	}
}

var _ Engine = (*Syncer)(nil)
