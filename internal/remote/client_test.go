package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flockhq/flock/internal/record"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		BearerToken: "test-token",
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c, srv
}

func TestUpsertSendsMergeDuplicates(t *testing.T) {
	var gotPath, gotPrefer, gotAuth, gotKey string
	var gotBody map[string]any

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefer = r.Header.Get("Prefer")
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))

	payload := map[string]any{"id": "n1", "title": "Sunday notes"}
	if err := c.Upsert(context.Background(), record.EntityNotes, payload); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if gotPath != "/notes" {
		t.Errorf("Expected path /notes, got %s", gotPath)
	}
	if gotPrefer != "resolution=merge-duplicates,return=minimal" {
		t.Errorf("Unexpected Prefer header: %s", gotPrefer)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Unexpected Authorization header: %s", gotAuth)
	}
	if gotKey != "test-key" {
		t.Errorf("Unexpected apikey header: %s", gotKey)
	}
	if gotBody["id"] != "n1" {
		t.Errorf("Payload id did not round-trip: %v", gotBody)
	}
}

func TestUpsertServerError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"row violates policy"}`, http.StatusForbidden)
	}))

	err := c.Upsert(context.Background(), record.EntityNotes, map[string]any{"id": "n1"})
	if err == nil {
		t.Fatal("Expected error for 403 response, got nil")
	}

	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("Expected RemoteError, got %T", err)
	}
	if re.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", re.StatusCode)
	}
}

func TestSelectFiltersAndRange(t *testing.T) {
	var gotQuery, gotRange string

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"m1","full_name":"Ada Stone"}]`))
	}))

	rows, err := c.Select(context.Background(), record.EntityMembers, SelectOptions{
		Filters: map[string]string{"approved": "eq.true"},
		Order:   "full_name.asc",
		Limit:   50,
		Offset:  100,
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "m1" {
		t.Errorf("Unexpected rows: %v", rows)
	}

	for _, want := range []string{"approved=eq.true", "order=full_name.asc", "select=%2A"} {
		if !containsParam(gotQuery, want) {
			t.Errorf("Query %q missing %q", gotQuery, want)
		}
	}
	if gotRange != "100-149" {
		t.Errorf("Expected Range 100-149, got %q", gotRange)
	}
}

func containsParam(query, param string) bool {
	for _, part := range splitQuery(query) {
		if part == param {
			return true
		}
	}
	return false
}

func splitQuery(query string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(query); i++ {
		if i == len(query) || query[i] == '&' {
			parts = append(parts, query[start:i])
			start = i + 1
		}
	}
	return parts
}

func TestSelectDecodeError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))

	_, err := c.Select(context.Background(), record.EntityNotes, SelectOptions{})
	if err == nil {
		t.Fatal("Expected decode error, got nil")
	}
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("Expected RemoteError, got %T", err)
	}
}

func TestPingAnyResponseCounts(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Auth rejection still proves reachability.
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Expected Ping to succeed on any HTTP response, got %v", err)
	}
}

func TestPingUnreachable(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if err := c.Ping(context.Background()); err == nil {
		t.Error("Expected Ping to fail against closed server")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{}, nil); err == nil {
		t.Error("Expected error for missing base URL")
	}
}

func TestMembersDecoding(t *testing.T) {
	rows := []map[string]any{
		{"id": "m1", "full_name": "Ada Stone", "role": "admin", "approved": true, "updated_at": "2026-08-01T10:00:00Z"},
		{"id": "m2"}, // missing full_name
		{"id": "m3", "full_name": "Ben Okafor"},
	}

	members, skipped := Members(rows)
	if skipped != 1 {
		t.Errorf("Expected 1 skipped row, got %d", skipped)
	}
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(members))
	}
	if members[0].Role != record.RoleAdmin || !members[0].Approved {
		t.Errorf("First member fields wrong: %+v", members[0])
	}
	if members[0].ServerUpdatedAt == nil {
		t.Error("Expected ServerUpdatedAt to be parsed")
	}
	// Role defaults to pending when the server omits it.
	if members[1].Role != record.RolePending {
		t.Errorf("Expected default role pending, got %s", members[1].Role)
	}
}
