// Package integration provides a reusable test harness for end-to-end testing
// of the reservation console server. It starts a full HTTP server wired to a
// mock backend, an in-memory session store, and an HMAC test token signer.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/backend"
	"github.com/lunahq/posada/internal/config"
	"github.com/lunahq/posada/internal/crud"
	"github.com/lunahq/posada/internal/definition"
	"github.com/lunahq/posada/internal/observability"
	"github.com/lunahq/posada/internal/reservation"
	"github.com/lunahq/posada/internal/transport"
)

const secretEnvName = "POSADA_INTEGRATION_JWT_SECRET"

// TestHarness encapsulates a fully wired console instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Components exposed for advanced scenarios.
	Backend      *MockBackend
	Registry     *definition.Registry
	SessionStore *reservation.MemoryStore
	Engine       *reservation.Engine

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	definitionDirs []string
	closeDelay     time.Duration
	handlerTimeout time.Duration
	retryAttempts  int
}

// WithDefinitions overrides the definition directories to load. By default the
// harness loads the repository's shipped definitions.
func WithDefinitions(dirs ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.definitionDirs = dirs
	}
}

// WithCloseDelay sets the delay before a cash-paid session closes.
func WithCloseDelay(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.closeDelay = d
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithRetryAttempts sets the backend client's retry budget.
func WithRetryAttempts(n int) HarnessOption {
	return func(c *harnessConfig) {
		c.retryAttempts = n
	}
}

// NewTestHarness creates and starts a full console test instance. The server
// is cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		closeDelay:     5 * time.Millisecond,
		handlerTimeout: 10 * time.Second,
		retryAttempts:  3,
	}
	for _, opt := range opts {
		opt(hc)
	}
	if len(hc.definitionDirs) == 0 {
		hc.definitionDirs = []string{defaultDefinitionsDir()}
	}

	h := &TestHarness{
		t:       t,
		Backend: NewMockBackend(t),
	}
	logger := zap.NewNop()

	t.Setenv(secretEnvName, testSecret)

	cfg := config.Defaults()
	cfg.Backend.BaseURL = h.Backend.URL()
	cfg.Backend.Timeout = 2 * time.Second
	cfg.Backend.Retry.MaxAttempts = hc.retryAttempts
	cfg.Backend.Retry.BackoffInitial = time.Millisecond
	cfg.Backend.Retry.BackoffMax = 2 * time.Millisecond
	cfg.Identity.SecretEnv = secretEnvName
	cfg.Identity.Issuer = testIssuer
	cfg.Definitions.Directories = hc.definitionDirs
	cfg.Reservation.CloseDelay = hc.closeDelay
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Observability.Metrics.Enabled = false
	h.cfg = cfg

	loader := definition.NewLoader(cfg.Definitions.Directories, logger)
	schemas, err := loader.Load()
	if err != nil {
		t.Fatalf("load definitions: %v", err)
	}
	h.Registry = definition.NewRegistry(schemas)

	client := backend.NewHTTPClient(cfg.Backend, logger)
	manager := crud.NewManager(h.Registry, client, logger, nil)

	h.SessionStore = reservation.NewMemoryStore()
	h.Engine = reservation.NewEngine(client, h.SessionStore, cfg.Reservation, logger, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Engine.Shutdown(ctx)
	})

	authenticator, err := transport.NewAuthenticator(cfg.Identity)
	if err != nil {
		t.Fatalf("build authenticator: %v", err)
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Authenticate: authenticator.Middleware,
		Manager:      manager,
		Reservations: h.Engine,
		Readiness: observability.ReadinessChecks{
			SchemasLoaded: func() bool { return h.Registry.Len() > 0 },
			SessionStore:  observability.HealthCheckFunc(h.SessionStore.Ping),
			Backend:       client,
		},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)
	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, token)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, token)
}

// PATCH performs an authenticated PATCH request with a JSON body.
func (h *TestHarness) PATCH(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPatch, path, body, token)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodDelete, path, nil, token)
}

func (h *TestHarness) doRequest(method, path string, body any, token string) *http.Response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.server.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks the expected status and parses the body into target.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Fixtures ---

// HotelFixture returns a map representing a typical hotel record.
func HotelFixture(id, name string, roomCount int) map[string]any {
	return map[string]any{
		"_id":                id,
		"nombreHotel":        name,
		"ciudad":             "Lima",
		"numeroHabitaciones": float64(roomCount),
	}
}

// RoomFixture returns a map representing a bookable room.
func RoomFixture(id, hotelID string, nightPrice float64) map[string]any {
	return map[string]any{
		"_id":         id,
		"idHotel":     hotelID,
		"estado":      "Disponible",
		"precioNoche": nightPrice,
	}
}

// ServiceFixture returns a map representing an additional service.
func ServiceFixture(id, hotelID, name string, price float64) map[string]any {
	return map[string]any{
		"_id":             id,
		"idHotel":         hotelID,
		"nombre":          name,
		"precioAdicional": price,
	}
}

// defaultDefinitionsDir resolves the repository's definitions directory
// relative to this source file.
func defaultDefinitionsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "definitions")
}
