package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/flockhq/flock/internal/bus"
	"github.com/flockhq/flock/internal/record"
	"github.com/flockhq/flock/internal/remote"
	"github.com/flockhq/flock/internal/store"
)

// fakeBackend is an in-memory remote.Service for tests.
type fakeBackend struct {
	mu       sync.Mutex
	upserts  map[string]map[string]any // "entity/id" -> payload
	blobs    map[string]int64          // key -> size
	failIDs  map[string]bool           // upserts for these ids fail
	blobFail bool
	rows     []map[string]any // Select result for members
	pageSize int              // when >0, Select pages rows

	// When gate is set, Upsert blocks until it is closed; gateEntity
	// narrows the block to one entity's upserts.
	gate       chan struct{}
	gateEntity record.Entity
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		upserts: make(map[string]map[string]any),
		blobs:   make(map[string]int64),
		failIDs: make(map[string]bool),
	}
}

func (f *fakeBackend) Upsert(ctx context.Context, entity record.Entity, payload map[string]any) error {
	if f.gate != nil && (f.gateEntity == "" || entity == f.gateEntity) {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := payload["id"].(string)
	if f.failIDs[id] {
		return &remote.RemoteError{Op: "upsert", StatusCode: 503, Err: errors.New("unavailable")}
	}
	f.upserts[string(entity)+"/"+id] = payload
	return nil
}

func (f *fakeBackend) Select(ctx context.Context, entity record.Entity, opts remote.SelectOptions) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows
	if opts.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

func (f *fakeBackend) UploadBlob(ctx context.Context, key string, contentType string, size int64, body io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blobFail {
		return "", &remote.RemoteError{Op: "upload", Err: errors.New("bucket unreachable")}
	}
	f.blobs[key] = size
	return "https://cdn.test/" + key, nil
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

func (f *fakeBackend) upsert(entity record.Entity, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts[string(entity)+"/"+id]
}

func setupSyncer(t *testing.T) (*Syncer, *store.Store, *fakeBackend) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	backend := newFakeBackend()
	s := New(DefaultConfig(), st, backend, bus.New(), nil)
	return s, st, backend
}

func insertNote(t *testing.T, st *store.Store, title string) *record.Note {
	t.Helper()
	n := &record.Note{
		ID:       record.NewID(),
		Title:    title,
		Body:     "body",
		AuthorID: "author-1",
	}
	if err := st.InsertNote(context.Background(), n); err != nil {
		t.Fatalf("InsertNote failed: %v", err)
	}
	return n
}

func TestSyncNotesSuccess(t *testing.T) {
	s, st, backend := setupSyncer(t)
	ctx := context.Background()

	n := insertNote(t, st, "sermon notes")

	result, err := s.SyncEntity(ctx, record.EntityNotes)
	if err != nil {
		t.Fatalf("SyncEntity failed: %v", err)
	}
	if result.Synced != 1 || result.Failed != 0 {
		t.Errorf("Expected 1 synced 0 failed, got %+v", result)
	}

	payload := backend.upsert(record.EntityNotes, n.ID)
	if payload == nil {
		t.Fatal("Expected note to reach the backend")
	}
	if payload["title"] != "sermon notes" {
		t.Errorf("Payload title wrong: %v", payload["title"])
	}

	got, err := st.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.SyncStatus != record.StatusSynced {
		t.Errorf("Expected synced, got %s", got.SyncStatus)
	}
}

func TestSyncIsolatesFailures(t *testing.T) {
	s, st, backend := setupSyncer(t)
	ctx := context.Background()

	good := insertNote(t, st, "good")
	bad := insertNote(t, st, "bad")
	backend.failIDs[bad.ID] = true

	result, err := s.SyncEntity(ctx, record.EntityNotes)
	if err != nil {
		t.Fatalf("SyncEntity failed: %v", err)
	}
	if result.Synced != 1 || result.Failed != 1 {
		t.Errorf("Expected 1 synced 1 failed, got %+v", result)
	}

	gotGood, _ := st.GetNote(ctx, good.ID)
	if gotGood.SyncStatus != record.StatusSynced {
		t.Errorf("Good note not synced: %s", gotGood.SyncStatus)
	}
	// The failed record stays pending; nothing marks it conflict or dead.
	gotBad, _ := st.GetNote(ctx, bad.ID)
	if gotBad.SyncStatus != record.StatusPending {
		t.Errorf("Failed note should stay pending, got %s", gotBad.SyncStatus)
	}
}

func TestSyncIdempotentSecondPass(t *testing.T) {
	s, st, _ := setupSyncer(t)
	ctx := context.Background()

	insertNote(t, st, "once")

	first, err := s.SyncEntity(ctx, record.EntityNotes)
	if err != nil {
		t.Fatalf("First pass failed: %v", err)
	}
	if first.Synced != 1 {
		t.Fatalf("Expected 1 synced, got %+v", first)
	}

	second, err := s.SyncEntity(ctx, record.EntityNotes)
	if err != nil {
		t.Fatalf("Second pass failed: %v", err)
	}
	if second.Synced != 0 || second.Failed != 0 {
		t.Errorf("Second pass should be a no-op, got %+v", second)
	}
}

func TestSyncNoteWithAudio(t *testing.T) {
	s, st, backend := setupSyncer(t)
	ctx := context.Background()

	audioPath := filepath.Join(t.TempDir(), "rec.m4a")
	if err := os.WriteFile(audioPath, []byte("fake audio bytes"), 0644); err != nil {
		t.Fatalf("Failed to write audio fixture: %v", err)
	}

	n := insertNote(t, st, "with recording")
	if err := st.AttachNoteAudio(ctx, n.ID, audioPath); err != nil {
		t.Fatalf("AttachNoteAudio failed: %v", err)
	}

	result, err := s.SyncEntity(ctx, record.EntityNotes)
	if err != nil {
		t.Fatalf("SyncEntity failed: %v", err)
	}
	if result.Synced != 1 || result.BlobsFailed != 0 {
		t.Errorf("Expected clean sync, got %+v", result)
	}

	key := "audio/" + n.ID + ".m4a"
	if backend.blobs[key] == 0 {
		t.Errorf("Expected blob uploaded under %s", key)
	}

	payload := backend.upsert(record.EntityNotes, n.ID)
	wantURL := "https://cdn.test/" + key
	if payload["audio_url"] != wantURL {
		t.Errorf("Expected audio_url %s in payload, got %v", wantURL, payload["audio_url"])
	}

	got, _ := st.GetNote(ctx, n.ID)
	if got.AudioURL != wantURL {
		t.Errorf("Expected stored audio URL %s, got %q", wantURL, got.AudioURL)
	}
	if got.SyncStatus != record.StatusSynced {
		t.Errorf("Expected synced, got %s", got.SyncStatus)
	}
}

func TestSyncNoteBlobFailureStillSyncsMetadata(t *testing.T) {
	s, st, backend := setupSyncer(t)
	ctx := context.Background()

	audioPath := filepath.Join(t.TempDir(), "rec.m4a")
	if err := os.WriteFile(audioPath, []byte("fake audio bytes"), 0644); err != nil {
		t.Fatalf("Failed to write audio fixture: %v", err)
	}

	n := insertNote(t, st, "audio lost")
	if err := st.AttachNoteAudio(ctx, n.ID, audioPath); err != nil {
		t.Fatalf("AttachNoteAudio failed: %v", err)
	}
	backend.blobFail = true

	result, err := s.SyncEntity(ctx, record.EntityNotes)
	if err != nil {
		t.Fatalf("SyncEntity failed: %v", err)
	}
	if result.Synced != 1 || result.BlobsFailed != 1 {
		t.Errorf("Expected 1 synced 1 blob failure, got %+v", result)
	}

	// The metadata upsert went through without the audio URL.
	payload := backend.upsert(record.EntityNotes, n.ID)
	if _, ok := payload["audio_url"]; ok {
		t.Errorf("Expected no audio_url in payload, got %v", payload["audio_url"])
	}

	got, _ := st.GetNote(ctx, n.ID)
	if got.SyncStatus != record.StatusSynced {
		t.Errorf("Expected synced despite blob failure, got %s", got.SyncStatus)
	}
	if got.AudioURL != "" {
		t.Errorf("Expected empty audio URL, got %q", got.AudioURL)
	}
}

func TestSyncAllCoversAllEntities(t *testing.T) {
	s, st, _ := setupSyncer(t)
	ctx := context.Background()

	insertNote(t, st, "note")
	a := &record.Attendance{
		ID: record.NewID(), MemberID: "m1", ServiceID: "svc1",
		ServiceDate: time.Now(), Status: record.AttendancePresent,
	}
	if err := st.InsertAttendance(ctx, a); err != nil {
		t.Fatalf("InsertAttendance failed: %v", err)
	}
	an := &record.Announcement{ID: record.NewID(), Title: "Potluck", AuthorID: "p1"}
	if err := st.InsertAnnouncement(ctx, an); err != nil {
		t.Fatalf("InsertAnnouncement failed: %v", err)
	}

	results, err := s.SyncAll(ctx, "manual")
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 entity passes, got %d", len(results))
	}
	for _, r := range results {
		if r.Synced != 1 || r.Failed != 0 {
			t.Errorf("Entity %s: expected 1 synced, got %+v", r.Entity, r)
		}
	}

	// Each pass landed in the journal with the trigger label.
	passes, err := st.ListPasses(ctx, 10)
	if err != nil {
		t.Fatalf("ListPasses failed: %v", err)
	}
	if len(passes) != 3 {
		t.Fatalf("Expected 3 journal rows, got %d", len(passes))
	}
	for _, p := range passes {
		if p.TriggeredBy != "manual" {
			t.Errorf("Expected trigger 'manual', got %q", p.TriggeredBy)
		}
	}
}

func TestSyncAllRunsEntityPassesConcurrently(t *testing.T) {
	s, st, backend := setupSyncer(t)
	ctx := context.Background()

	insertNote(t, st, "stuck behind a slow upload")
	a := &record.Attendance{
		ID: record.NewID(), MemberID: "m1", ServiceID: "svc1",
		ServiceDate: time.Now(), Status: record.AttendancePresent,
	}
	if err := st.InsertAttendance(ctx, a); err != nil {
		t.Fatalf("InsertAttendance failed: %v", err)
	}

	// Block only the notes upsert; the other entity passes must not
	// queue behind it.
	backend.gate = make(chan struct{})
	backend.gateEntity = record.EntityNotes

	done := make(chan []PassResult, 1)
	go func() {
		results, err := s.SyncAll(ctx, "manual")
		if err != nil {
			t.Errorf("SyncAll failed: %v", err)
		}
		done <- results
	}()

	deadline := time.Now().Add(2 * time.Second)
	for backend.upsert(record.EntityAttendance, a.ID) == nil {
		if time.Now().After(deadline) {
			t.Fatal("Attendance pass never ran while the notes pass was blocked")
		}
		time.Sleep(time.Millisecond)
	}

	close(backend.gate)
	results := <-done
	if len(results) != 3 {
		t.Fatalf("Expected 3 entity passes, got %d", len(results))
	}
}

func TestSyncAllDropsConcurrentTrigger(t *testing.T) {
	s, st, backend := setupSyncer(t)
	ctx := context.Background()

	insertNote(t, st, "slow")
	backend.gate = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.SyncAll(ctx, "reconnect")
		firstDone <- err
	}()

	// Wait until the first pass holds the guard.
	deadline := time.Now().Add(2 * time.Second)
	for !s.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("First pass never started")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := s.SyncAll(ctx, "manual")
	if !errors.Is(err, ErrSyncInFlight) {
		t.Errorf("Expected ErrSyncInFlight, got %v", err)
	}
	if s.DroppedTriggers() != 1 {
		t.Errorf("Expected 1 dropped trigger, got %d", s.DroppedTriggers())
	}

	close(backend.gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("First pass failed: %v", err)
	}

	// The guard is released; a new trigger runs.
	if _, err := s.SyncAll(ctx, "manual"); err != nil {
		t.Errorf("Expected post-pass trigger to run, got %v", err)
	}
}

func TestSyncPublishesEvents(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	events := bus.New()
	ch, cancel := events.Subscribe(bus.TopicSyncStarted, bus.TopicSyncFinished)
	defer cancel()

	s := New(DefaultConfig(), st, newFakeBackend(), events, nil)
	if _, err := s.SyncAll(context.Background(), "manual"); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	for _, want := range []bus.Topic{bus.TopicSyncStarted, bus.TopicSyncFinished} {
		select {
		case ev := <-ch:
			if ev.Topic != want {
				t.Errorf("Expected topic %s, got %s", want, ev.Topic)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for %s", want)
		}
	}
}

func TestRefreshMembersPaged(t *testing.T) {
	s, st, backend := setupSyncer(t)
	ctx := context.Background()

	// Three pages at the configured page size.
	s.config.PageSize = 2
	for i := 0; i < 5; i++ {
		backend.rows = append(backend.rows, map[string]any{
			"id":         fmt.Sprintf("m%d", i),
			"full_name":  fmt.Sprintf("Member %d", i),
			"role":       "member",
			"approved":   true,
			"updated_at": "2026-08-01T10:00:00Z",
		})
	}

	n, err := s.RefreshMembers(ctx)
	if err != nil {
		t.Fatalf("RefreshMembers failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5 members, got %d", n)
	}

	cached, err := st.ListMembers(ctx, store.MemberFilter{})
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(cached) != 5 {
		t.Errorf("Expected 5 cached members, got %d", len(cached))
	}
}
