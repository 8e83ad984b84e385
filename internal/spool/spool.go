// Package spool watches the audio spool directory where the recorder
// drops finished voice memos, and attaches each file to its note.
//
// A spool file is named {noteID}.m4a. Attaching it flips the note back to
// pending, so the next sync pass uploads the blob alongside the metadata.
package spool

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flockhq/flock/internal/store"
)

// audioExts lists recognized recording formats. Anything else in the
// spool directory is ignored.
var audioExts = map[string]bool{
	".m4a": true,
	".mp3": true,
	".wav": true,
}

// Config holds spool watcher configuration.
type Config struct {
	// Dir is the spool directory to watch.
	Dir string

	// SettleDelay is how long a file must be quiet after its last write
	// before it is attached. Recorders write in chunks; attaching too
	// early uploads a truncated file.
	SettleDelay time.Duration
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		SettleDelay: 2 * time.Second,
	}
}

// Watcher attaches spooled recordings to their notes.
type Watcher struct {
	config  Config
	store   *store.Store
	watcher *fsnotify.Watcher
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	pending map[string]time.Time // path -> last write seen
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a spool watcher. A nil logger disables logging.
func New(config Config, st *store.Store, logger *log.Logger) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("spool directory is required")
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultConfig(config.Dir).SettleDelay
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		config:  config,
		store:   st,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]time.Time),
	}, nil
}

// Start begins watching the spool directory. Files already present are
// attached first, so recordings made while the agent was down are not
// lost.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("spool watcher already running")
	}

	if err := os.MkdirAll(w.config.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	if err := w.sweep(ctx); err != nil {
		w.logger.Printf("spool sweep: %v", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	return nil
}

// Stop halts watching and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	// The settle ticker fires well below the settle delay so quiet files
	// are attached promptly.
	ticker := time.NewTicker(w.config.SettleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !audioExts[filepath.Ext(event.Name)] {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("spool watch: %v", err)

		case <-ticker.C:
			w.attachSettled(ctx)
		}
	}
}

// attachSettled attaches every tracked file whose last write is older
// than the settle delay.
func (w *Watcher) attachSettled(ctx context.Context) {
	cutoff := time.Now().Add(-w.config.SettleDelay)

	w.mu.Lock()
	var settled []string
	for path, last := range w.pending {
		if last.Before(cutoff) {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		if err := w.attach(ctx, path); err != nil {
			w.logger.Printf("spool attach %s: %v", filepath.Base(path), err)
		}
	}
}

// sweep attaches files already sitting in the spool directory.
func (w *Watcher) sweep(ctx context.Context) error {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to read spool directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !audioExts[filepath.Ext(entry.Name())] {
			continue
		}
		path := filepath.Join(w.config.Dir, entry.Name())
		if err := w.attach(ctx, path); err != nil {
			w.logger.Printf("spool attach %s: %v", entry.Name(), err)
		}
	}
	return nil
}

// attach links a spool file to the note named by its basename.
func (w *Watcher) attach(ctx context.Context, path string) error {
	noteID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if noteID == "" {
		return fmt.Errorf("spool file has no note id")
	}
	if err := w.store.AttachNoteAudio(ctx, noteID, path); err != nil {
		return fmt.Errorf("failed to attach audio to note %s: %w", noteID, err)
	}
	w.logger.Printf("spool: attached %s to note %s", filepath.Base(path), noteID)
	return nil
}
