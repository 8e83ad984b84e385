// Package bus is the in-process event channel between the sync engine and
// UI surfaces. Publishers fire and forget; a subscriber that falls behind
// loses events rather than blocking the engine.
package bus

import (
	"sync"
	"time"
)

// Topic names an event stream.
type Topic string

const (
	// TopicSyncStarted fires when an upload pass begins.
	TopicSyncStarted Topic = "sync.started"
	// TopicSyncFinished fires when an upload pass completes, with counts.
	TopicSyncFinished Topic = "sync.finished"
	// TopicConnectivity fires on every online/offline transition.
	TopicConnectivity Topic = "connectivity.changed"
	// TopicRecordChanged fires when a record is written locally.
	TopicRecordChanged Topic = "record.changed"
)

// Event is one published message.
type Event struct {
	Topic   Topic          `json:"topic"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Bus fans events out to subscribers. The zero value is not usable; call
// New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]subscription
	nextID int
}

type subscription struct {
	topics map[Topic]bool // nil = all topics
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers for the given topics (none = all). It returns the
// event channel and a cancel function. The channel is buffered; events
// that arrive while it is full are dropped for that subscriber only.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Event, func()) {
	var filter map[Topic]bool
	if len(topics) > 0 {
		filter = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			filter[t] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 16)
	b.subs[id] = subscription{topics: filter, ch: ch}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every matching subscriber without blocking.
func (b *Bus) Publish(topic Topic, payload map[string]any) {
	ev := Event{Topic: topic, At: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.topics != nil && !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is full; it loses this event.
		}
	}
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
