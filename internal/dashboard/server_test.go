package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/flockhq/flock/internal/bus"
)

func setupDashboard(t *testing.T) (*Server, *bus.Bus) {
	t.Helper()
	events := bus.New()
	s := NewServer(Config{Port: 0}, events, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})
	return s, events
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := setupDashboard(t)

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
}

func TestEventRelayedToClient(t *testing.T) {
	s, events := setupDashboard(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for the server to register the client before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	events.Publish(bus.TopicSyncFinished, map[string]any{"trigger": "manual"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var ev bus.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to decode relayed event: %v", err)
	}
	if ev.Topic != bus.TopicSyncFinished {
		t.Errorf("Expected topic %s, got %s", bus.TopicSyncFinished, ev.Topic)
	}
	if ev.Payload["trigger"] != "manual" {
		t.Errorf("Payload lost in relay: %v", ev.Payload)
	}
}

func TestClientCountTracksDisconnect(t *testing.T) {
	s, _ := setupDashboard(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected 1 client, got %d", s.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close(websocket.StatusNormalClosure, "done")

	deadline = time.Now().Add(2 * time.Second)
	for s.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected 0 clients after disconnect, got %d", s.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
