package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth()(rec, httptest.NewRequest(http.MethodGet, "/ui/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
}

func TestHandleReady_allChecksPass(t *testing.T) {
	checks := ReadinessChecks{
		SchemasLoaded: func() bool { return true },
		SessionStore:  HealthCheckFunc(func(context.Context) error { return nil }),
		Backend:       HealthCheckFunc(func(context.Context) error { return nil }),
	}

	rec := httptest.NewRecorder()
	HandleReady(checks)(rec, httptest.NewRequest(http.MethodGet, "/ui/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ready" {
		t.Errorf("status = %q", body.Status)
	}
	if len(body.Checks) != 3 {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestHandleReady_failedCheckIs503(t *testing.T) {
	checks := ReadinessChecks{
		SchemasLoaded: func() bool { return true },
		SessionStore:  HealthCheckFunc(func(context.Context) error { return errors.New("store down") }),
	}

	rec := httptest.NewRecorder()
	HandleReady(checks)(rec, httptest.NewRequest(http.MethodGet, "/ui/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "not_ready" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Checks["session_store"].Error != "store down" {
		t.Errorf("session_store = %+v", body.Checks["session_store"])
	}
}

func TestHandleReady_noSchemas(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleReady(ReadinessChecks{SchemasLoaded: func() bool { return false }})(
		rec, httptest.NewRequest(http.MethodGet, "/ui/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
