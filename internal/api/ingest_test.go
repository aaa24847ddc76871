package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/ingest"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestPostEvent(t *testing.T) {
	server, tracker, dbInst := setupTestServer(t)

	w := postJSON(t, server.handleEvents, "/api/events",
		`{"sensor_id":"pir-7","room":"kitchen","person_id":"alice","ts":1700000000}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var event ingest.Event
	decodeJSON(t, w, &event)
	if event.Kind != db.EventKindMotion {
		t.Errorf("Expected motion kind in echo, got %q", event.Kind)
	}

	if got := tracker.EstimateLocations()["alice"]; got != "kitchen" {
		t.Errorf("Expected alice estimated in kitchen, got %q", got)
	}

	stored, err := dbInst.RecentEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(stored) != 1 || stored[0].SensorID != "pir-7" {
		t.Errorf("Expected the event persisted, got %+v", stored)
	}
}

func TestPostEvent_InvalidJSON(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := postJSON(t, server.handleEvents, "/api/events", `{truncated`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestPostEvent_MissingRoom(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := postJSON(t, server.handleEvents, "/api/events", `{"sensor_id":"pir-7"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for motion without room, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "room") {
		t.Errorf("Expected the error to name the missing field, got %s", w.Body.String())
	}
}

func TestPostEvent_NoHandler(t *testing.T) {
	server, _, _ := setupTestServer(t)
	server.handler = nil

	w := postJSON(t, server.handleEvents, "/api/events",
		`{"sensor_id":"pir-7","room":"kitchen"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestListEvents(t *testing.T) {
	server, _, _ := setupTestServer(t)

	for _, body := range []string{
		`{"sensor_id":"pir-7","room":"kitchen","ts":1700000000}`,
		`{"sensor_id":"pir-8","room":"bedroom","ts":1700000060}`,
	} {
		if w := postJSON(t, server.handleEvents, "/api/events", body); w.Code != http.StatusCreated {
			t.Fatalf("Seed POST failed with %d: %s", w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=10", nil)
	w := httptest.NewRecorder()
	server.handleEvents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Events []db.SensorEvent `json:"events"`
		Count  int              `json:"count"`
	}
	decodeJSON(t, w, &resp)

	if resp.Count != 2 {
		t.Fatalf("Expected 2 events, got %d", resp.Count)
	}
	// Most recent first
	if resp.Events[0].SensorID != "pir-8" {
		t.Errorf("Expected newest event first, got %q", resp.Events[0].SensorID)
	}
}

func TestListEvents_InvalidLimit(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=zero", nil)
	w := httptest.NewRecorder()
	server.handleEvents(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleEvents_MethodNotAllowed(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/events", nil)
	w := httptest.NewRecorder()
	server.handleEvents(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestPostPresence(t *testing.T) {
	server, tracker, _ := setupTestServer(t)

	w := postJSON(t, server.postPresence, "/api/presence",
		`{"room":"kitchen","present":true}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	if got := tracker.Stats().PresenceUpdates; got != 1 {
		t.Errorf("Expected 1 presence update, got %d", got)
	}
}

func TestPostPresence_Validation(t *testing.T) {
	server, _, _ := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing room", `{"present":true}`},
		{"missing present", `{"room":"kitchen"}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, server.postPresence, "/api/presence", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestPostPresence_MethodNotAllowed(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/presence", nil)
	w := httptest.NewRecorder()
	server.postPresence(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestPostPhone(t *testing.T) {
	server, tracker, _ := setupTestServer(t)

	tracker.AssociatePhone("alice", "pixel-9")

	w := postJSON(t, server.postPhone, "/api/phones",
		`{"phone_id":"pixel-9","room":"bathroom","activity":"walking"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	if got := tracker.EstimateLocations()["alice"]; got != "bathroom" {
		t.Errorf("Expected alice estimated in bathroom, got %q", got)
	}
}

func TestPostPhone_MissingID(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := postJSON(t, server.postPhone, "/api/phones", `{"room":"bathroom"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestPostAssociate(t *testing.T) {
	server, tracker, _ := setupTestServer(t)

	w := postJSON(t, server.postAssociate, "/api/associate",
		`{"person_id":"alice","phone_id":"pixel-9"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	snap := tracker.DumpState()
	phone, ok := snap.Phones["pixel-9"]
	if !ok || phone.Person != "alice" {
		t.Errorf("Expected pixel-9 associated to alice, got %+v", phone)
	}
}

func TestPostAssociate_Validation(t *testing.T) {
	server, _, _ := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing person", `{"phone_id":"pixel-9"}`},
		{"missing phone", `{"person_id":"alice"}`},
		{"bad json", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, server.postAssociate, "/api/associate", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}
