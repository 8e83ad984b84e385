package bus

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(TopicSyncStarted, map[string]any{"entity": "notes"})

	select {
	case ev := <-ch:
		if ev.Topic != TopicSyncStarted {
			t.Errorf("Expected topic %s, got %s", TopicSyncStarted, ev.Topic)
		}
		if ev.Payload["entity"] != "notes" {
			t.Errorf("Unexpected payload: %v", ev.Payload)
		}
		if ev.At.IsZero() {
			t.Error("Expected event timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestTopicFilter(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe(TopicConnectivity)
	defer cancel()

	b.Publish(TopicSyncStarted, nil)
	b.Publish(TopicConnectivity, map[string]any{"online": true})

	select {
	case ev := <-ch:
		if ev.Topic != TopicConnectivity {
			t.Errorf("Filter leaked topic %s", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for filtered event")
	}

	select {
	case ev := <-ch:
		t.Errorf("Expected no further events, got %s", ev.Topic)
	default:
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	// Overflow the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(TopicRecordChanged, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if got := len(ch); got > cap(ch) {
		t.Errorf("Channel over capacity: %d", got)
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", b.Subscribers())
	}

	cancel()
	if b.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers after cancel, got %d", b.Subscribers())
	}

	// Double cancel is safe.
	cancel()
}

func TestPublishAfterCancelDoesNotPanic(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe()
	cancel()
	b.Publish(TopicSyncFinished, nil)
}
