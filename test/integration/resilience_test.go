package integration

import (
	"net/http"
	"testing"

	"github.com/lunahq/posada/internal/crud"
)

func TestReadRetriesTransientFailures(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles", HotelFixture("h1", "Hotel Andino", 2))
	h.Backend.FailNext(2, http.StatusInternalServerError)
	admin := GenerateToken(t, AdminClaims())

	var view crud.View
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/refresh", nil, admin), http.StatusOK, &view)

	if view.State != crud.StateLoaded {
		t.Fatalf("state = %q, error = %q", view.State, view.Error)
	}
	if got := h.Backend.RequestCount(http.MethodGet, "/hoteles"); got != 3 {
		t.Errorf("backend saw %d list calls, want 3 (2 failures + success)", got)
	}
}

func TestWritesAreNotRetried(t *testing.T) {
	h := NewTestHarness(t)
	admin := GenerateToken(t, AdminClaims())

	for field, value := range map[string]string{
		"nombreHotel": "Hotel Efimero",
		"ciudad":      "Iquitos",
	} {
		resp := h.POST("/ui/resources/hoteles/form",
			map[string]string{"field": field, "value": value}, admin)
		h.AssertStatus(t, resp, http.StatusOK)
	}

	h.Backend.FailNext(1, http.StatusInternalServerError)
	resp := h.POST("/ui/resources/hoteles/submit", nil, admin)
	resp.Body.Close()
	if resp.StatusCode < http.StatusBadRequest {
		t.Fatalf("status = %d, want an error", resp.StatusCode)
	}

	// A create must reach the backend exactly once; replays could double-book.
	if got := h.Backend.RequestCount(http.MethodPost, "/hoteles"); got != 1 {
		t.Errorf("backend saw %d create calls, want 1", got)
	}
}

func TestConnectionFailureSurfacesOnView(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles", HotelFixture("h1", "Hotel Andino", 2))
	admin := GenerateToken(t, AdminClaims())

	var view crud.View
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/refresh", nil, admin), http.StatusOK, &view)
	if view.State != crud.StateLoaded || len(view.Rows) != 1 {
		t.Fatalf("initial load: state = %q, rows = %d", view.State, len(view.Rows))
	}

	// A failed reload flags the error but keeps the loaded rows on screen.
	h.Backend.FailNextWithConnectionError(3)
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/refresh", nil, admin), http.StatusOK, &view)
	if view.State != crud.StateFailed {
		t.Fatalf("state = %q", view.State)
	}
	if view.Error == "" {
		t.Error("no error surfaced on the view")
	}
	if len(view.Rows) != 1 {
		t.Errorf("rows after failed reload = %d, want the stale row", len(view.Rows))
	}

	// The backend recovered; the next refresh succeeds and clears the error.
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/refresh", nil, admin), http.StatusOK, &view)
	if view.State != crud.StateLoaded || view.Error != "" {
		t.Fatalf("state after recovery = %q, error = %q", view.State, view.Error)
	}
	if len(view.Rows) != 1 {
		t.Errorf("rows = %d", len(view.Rows))
	}
}

func TestCircuitBreakerFailsFast(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles", HotelFixture("h1", "Hotel Andino", 2))
	h.Backend.FailNextWithConnectionError(20)
	admin := GenerateToken(t, AdminClaims())

	// Hammer the failing backend until the breaker opens.
	for i := 0; i < 3; i++ {
		resp := h.POST("/ui/resources/hoteles/refresh", nil, admin)
		resp.Body.Close()
	}

	before := h.Backend.RequestCount(http.MethodGet, "/hoteles")
	var view crud.View
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/refresh", nil, admin), http.StatusOK, &view)

	if view.State != crud.StateFailed {
		t.Fatalf("state = %q", view.State)
	}
	if got := h.Backend.RequestCount(http.MethodGet, "/hoteles"); got != before {
		t.Errorf("open breaker still sent %d requests", got-before)
	}
}

func TestSubmitFailureKeepsSessionRecoverable(t *testing.T) {
	h := NewTestHarness(t)
	seedReservationData(h)
	token := GenerateToken(t, ClientClaims())
	id := startSession(t, h, token).Session.ID

	h.AssertStatus(t, h.PATCH("/ui/reservations/"+id+"/draft", map[string]any{
		"room_id":   "r1",
		"check_in":  "2026-10-10",
		"check_out": "2026-10-12",
	}, token), http.StatusOK)

	h.Backend.FailNext(1, http.StatusInternalServerError)
	resp := h.POST("/ui/reservations/"+id+"/submit", nil, token)
	resp.Body.Close()
	if resp.StatusCode < http.StatusBadRequest {
		t.Fatalf("status = %d, want an error", resp.StatusCode)
	}

	// Editing the draft moves the session back to collecting input.
	var body sessionBody
	h.AssertJSON(t, h.PATCH("/ui/reservations/"+id+"/draft",
		map[string]any{"check_out": "2026-10-13"}, token), http.StatusOK, &body)
	if !body.Session.Active() {
		t.Fatalf("session not editable after failure, status = %q", body.Session.Status)
	}

	// A clean retry completes the reservation.
	h.AssertJSON(t, h.POST("/ui/reservations/"+id+"/submit", nil, token), http.StatusOK, &body)
	if body.Session.ReservationID == "" {
		t.Error("retry did not create the reservation")
	}
}
