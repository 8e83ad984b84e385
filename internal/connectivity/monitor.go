// Package connectivity watches backend reachability and turns the
// offline-to-online transition into a sync trigger.
//
// The monitor is deliberately edge-triggered: only the transition fires a
// sync, not every successful probe, so a stable connection does not cause
// busy-looping. A transition that lands while a pass is already in flight
// is dropped; the running pass drains the same pending queue the trigger
// would have.
package connectivity

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flockhq/flock/internal/bus"
	"github.com/flockhq/flock/internal/syncer"
)

// Prober performs one reachability check. A nil error means online.
type Prober interface {
	Ping(ctx context.Context) error
}

// Config holds monitor configuration.
type Config struct {
	// Interval is the time between probes.
	Interval time.Duration

	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration

	// Debounce suppresses a reconnect trigger until the connection has
	// been stable this long, so a flapping link does not fire a pass on
	// every blip.
	Debounce time.Duration
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
		Debounce:     2 * time.Second,
	}
}

// Monitor polls the backend and triggers the sync engine on reconnect.
type Monitor struct {
	config Config
	probe  Prober
	engine syncer.Engine
	events *bus.Bus
	logger *log.Logger

	online  atomic.Bool
	dropped atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a monitor. events may be nil; a nil logger disables logging.
func New(config Config, probe Prober, engine syncer.Engine, events *bus.Bus, logger *log.Logger) *Monitor {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = def.ProbeTimeout
	}
	if config.Debounce < 0 {
		config.Debounce = def.Debounce
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Monitor{
		config: config,
		probe:  probe,
		engine: engine,
		events: events,
		logger: logger,
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// DroppedTriggers reports reconnects whose sync trigger was dropped
// because a pass was already in flight.
func (m *Monitor) DroppedTriggers() int64 {
	return m.dropped.Load()
}

// Start begins probing in the background until Stop or context cancel.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx)
	}()
	return nil
}

// Stop halts probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	// Probe immediately so startup state is known before the first tick.
	m.check(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one probe and handles the state transition, if any.
func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	err := m.probe.Ping(probeCtx)
	cancel()

	nowOnline := err == nil
	wasOnline := m.online.Swap(nowOnline)
	if nowOnline == wasOnline {
		return
	}

	m.logger.Printf("connectivity: online=%v", nowOnline)
	m.publish(nowOnline)

	if !nowOnline {
		return
	}

	// Reconnect. Hold for the debounce window and re-probe: a link that
	// flaps inside the window does not earn a sync pass.
	if m.config.Debounce > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.Debounce):
		}
		probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
		err := m.probe.Ping(probeCtx)
		cancel()
		if err != nil {
			m.online.Store(false)
			m.publish(false)
			return
		}
	}

	// A pass can run long; keep it off the probe goroutine so probing
	// keeps its cadence and an offline edge is still seen promptly. The
	// engine's in-flight guard makes an overlapping trigger a no-op.
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.engine.SyncAll(ctx, "reconnect"); err != nil {
			if errors.Is(err, syncer.ErrSyncInFlight) {
				m.dropped.Add(1)
				m.logger.Printf("reconnect trigger dropped: pass in flight")
				return
			}
			m.logger.Printf("reconnect sync: %v", err)
		}
	}()
}

func (m *Monitor) publish(online bool) {
	if m.events != nil {
		m.events.Publish(bus.TopicConnectivity, map[string]any{"online": online})
	}
}
