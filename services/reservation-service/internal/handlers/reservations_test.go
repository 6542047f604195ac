package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carebook/carebook/services/reservation-service/internal/directory"
	"github.com/carebook/carebook/services/reservation-service/internal/events"
	"github.com/carebook/carebook/services/reservation-service/internal/reservation"
	"github.com/carebook/carebook/services/reservation-service/internal/store"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	topics []string
	keys   []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, _ any) {
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
}

func (p *recordingPublisher) Close() error { return nil }

type testServer struct {
	handler   *ReservationHandler
	published *recordingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := reservation.DefaultConfig()
	// Pinned well before the windows the tests create.
	cfg.Clock = func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := reservation.New(store.New(), directory.Default(), cfg, logger)
	published := &recordingPublisher{}
	return &testServer{
		handler:   NewReservationHandler(engine, published, logger),
		published: published,
	}
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeItems(t *testing.T, rec *httptest.ResponseRecorder) []appointmentItem {
	t.Helper()
	var items []appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
	return items
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v (body %q)", err, rec.Body.String())
	}
	return body["error"]
}

func createSlots(t *testing.T, ts *testServer) []appointmentItem {
	t.Helper()
	rec := doJSON(t, ts.handler.CreateAvailability, http.MethodPost, "/api/v1/availability",
		`{"provider_id":"1","start_time":"2024-01-02T09:00","end_time":"2024-01-02T10:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create availability returned %d: %s", rec.Code, rec.Body.String())
	}
	return decodeItems(t, rec)
}

func TestCreateAvailability(t *testing.T) {
	ts := newTestServer(t)

	items := createSlots(t, ts)
	if len(items) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(items))
	}
	if items[0].StartTime != "2024-01-02T09:00:00Z" || items[1].StartTime != "2024-01-02T09:30:00Z" {
		t.Fatalf("unexpected slot starts: %+v", items)
	}
	for _, item := range items {
		if item.ClientID != "" || item.ReservedAt != "" || item.ConfirmedAt != "" {
			t.Fatalf("new slot carries hold fields: %+v", item)
		}
	}
	if len(ts.published.topics) != 1 || ts.published.topics[0] != events.TopicAvailabilityCreated {
		t.Fatalf("expected one availability event, got %v", ts.published.topics)
	}
}

func TestCreateAvailability_Errors(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:   "bad json",
			body:   "{",
			status: http.StatusBadRequest,
		},
		{
			name:   "missing fields",
			body:   `{"provider_id":"1"}`,
			status: http.StatusBadRequest,
		},
		{
			name:    "unknown provider",
			body:    `{"provider_id":"99","start_time":"2024-01-02T09:00","end_time":"2024-01-02T10:00"}`,
			status:  http.StatusNotFound,
			message: "provider does not exist",
		},
		{
			name:    "bad date",
			body:    `{"provider_id":"1","start_time":"nope","end_time":"2024-01-02T10:00"}`,
			status:  http.StatusBadRequest,
			message: "invalid date string detected",
		},
		{
			name:    "misaligned",
			body:    `{"provider_id":"1","start_time":"2024-01-02T09:10","end_time":"2024-01-02T10:00"}`,
			status:  http.StatusBadRequest,
			message: "start and end time values must be in 30 minute increments",
		},
	}
	for _, tc := range cases {
		rec := doJSON(t, ts.handler.CreateAvailability, http.MethodPost, "/api/v1/availability", tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d (body %s)", tc.name, rec.Code, tc.status, rec.Body.String())
		}
		if tc.message != "" && errorMessage(t, rec) != tc.message {
			t.Fatalf("%s: message %q, want %q", tc.name, errorMessage(t, rec), tc.message)
		}
	}
	if len(ts.published.topics) != 0 {
		t.Fatalf("failed requests must not publish events, got %v", ts.published.topics)
	}
}

func TestCreateAvailability_Conflict(t *testing.T) {
	ts := newTestServer(t)
	createSlots(t, ts)

	rec := doJSON(t, ts.handler.CreateAvailability, http.MethodPost, "/api/v1/availability",
		`{"provider_id":"1","start_time":"2024-01-02T09:00","end_time":"2024-01-02T10:00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := errorMessage(t, rec); got != "appointments have already been created for this provider and time span" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestListAvailable(t *testing.T) {
	ts := newTestServer(t)
	items := createSlots(t, ts)

	rec := doJSON(t, ts.handler.ListAvailable, http.MethodGet,
		"/api/v1/appointments/available?provider_id=1&start_time=2024-01-02T09:00&end_time=2024-01-02T10:00", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d: %s", rec.Code, rec.Body.String())
	}
	if listed := decodeItems(t, rec); len(listed) != 2 {
		t.Fatalf("expected 2 available slots, got %d", len(listed))
	}

	// Reserved slots drop out; the rest come back with hold fields scrubbed.
	rec = doJSON(t, ts.handler.Reserve, http.MethodPost, "/api/v1/appointments/reserve",
		`{"appointment_id":"`+items[0].ID+`","client_id":"2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reserve returned %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, ts.handler.ListAvailable, http.MethodGet,
		"/api/v1/appointments/available?provider_id=1&start_time=2024-01-02T09:00&end_time=2024-01-02T10:00", "")
	listed := decodeItems(t, rec)
	if len(listed) != 1 || listed[0].ID != items[1].ID {
		t.Fatalf("expected only the unreserved slot, got %+v", listed)
	}
	if listed[0].ClientID != "" || listed[0].ReservedAt != "" {
		t.Fatalf("listing leaked hold fields: %+v", listed[0])
	}

	// Missing window params.
	rec = doJSON(t, ts.handler.ListAvailable, http.MethodGet, "/api/v1/appointments/available?provider_id=1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing window, got %d", rec.Code)
	}
	rec = doJSON(t, ts.handler.ListAvailable, http.MethodGet,
		"/api/v1/appointments/available?start_time=bogus&end_time=2024-01-02T10:00", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestReserve(t *testing.T) {
	ts := newTestServer(t)
	items := createSlots(t, ts)

	rec := doJSON(t, ts.handler.Reserve, http.MethodPost, "/api/v1/appointments/reserve",
		`{"appointment_id":"`+items[0].ID+`","client_id":"2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reserve returned %d: %s", rec.Code, rec.Body.String())
	}
	var updated appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if updated.ClientID != "2" || updated.ReservedAt == "" {
		t.Fatalf("reserve response missing hold fields: %+v", updated)
	}

	// Double reserve and unknown id both map to 400 with the merged message.
	for _, id := range []string{items[0].ID, "missing"} {
		rec = doJSON(t, ts.handler.Reserve, http.MethodPost, "/api/v1/appointments/reserve",
			`{"appointment_id":"`+id+`","client_id":"4"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", id, rec.Code)
		}
		if got := errorMessage(t, rec); got != "appointment is no longer available" {
			t.Fatalf("unexpected message %q", got)
		}
	}

	if len(ts.published.topics) != 2 || ts.published.topics[1] != events.TopicSlotReserved {
		t.Fatalf("expected one reserved event after the availability event, got %v", ts.published.topics)
	}
	if ts.published.keys[1] != items[0].ID {
		t.Fatalf("reserved event keyed by %q, want %q", ts.published.keys[1], items[0].ID)
	}
}

func TestConfirm(t *testing.T) {
	ts := newTestServer(t)
	items := createSlots(t, ts)

	doJSON(t, ts.handler.Reserve, http.MethodPost, "/api/v1/appointments/reserve",
		`{"appointment_id":"`+items[0].ID+`","client_id":"2"}`)

	rec := doJSON(t, ts.handler.Confirm, http.MethodPost, "/api/v1/appointments/confirm",
		`{"appointment_id":"missing","client_id":"2"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
	if got := errorMessage(t, rec); got != "appointment not found" {
		t.Fatalf("unexpected message %q", got)
	}

	rec = doJSON(t, ts.handler.Confirm, http.MethodPost, "/api/v1/appointments/confirm",
		`{"appointment_id":"`+items[0].ID+`","client_id":"3"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong client, got %d", rec.Code)
	}
	if got := errorMessage(t, rec); got != "appointment cannot be confirmed" {
		t.Fatalf("unexpected message %q", got)
	}

	rec = doJSON(t, ts.handler.Confirm, http.MethodPost, "/api/v1/appointments/confirm",
		`{"appointment_id":"`+items[0].ID+`","client_id":"2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm returned %d: %s", rec.Code, rec.Body.String())
	}
	var updated appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if updated.ConfirmedAt == "" {
		t.Fatalf("confirm response missing confirmed_at: %+v", updated)
	}

	want := []string{events.TopicAvailabilityCreated, events.TopicSlotReserved, events.TopicSlotConfirmed}
	if len(ts.published.topics) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), ts.published.topics)
	}
	for i, topic := range want {
		if ts.published.topics[i] != topic {
			t.Fatalf("event %d is %q, want %q", i, ts.published.topics[i], topic)
		}
	}
}

func TestMethodGuards(t *testing.T) {
	ts := newTestServer(t)
	guards := []struct {
		h      http.HandlerFunc
		method string
	}{
		{ts.handler.CreateAvailability, http.MethodGet},
		{ts.handler.ListAvailable, http.MethodPost},
		{ts.handler.Reserve, http.MethodGet},
		{ts.handler.Confirm, http.MethodDelete},
	}
	for _, g := range guards {
		rec := doJSON(t, g.h, g.method, "/api/v1/anything", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", g.method, rec.Code)
		}
	}
}
