package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lunahq/posada/model"
)

// MockBackend simulates the reservation backend's uniform collection API over
// an in-memory record store. It records every request for later assertion and
// can be scripted to fail upcoming requests.
type MockBackend struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	collections map[string][]model.Record
	nextID      int
	failures    []plannedFailure
	requests    []*RecordedRequest
}

// RecordedRequest captures one request received by the mock backend.
type RecordedRequest struct {
	Method     string
	Path       string
	Body       map[string]any
	ReceivedAt time.Time
}

type plannedFailure struct {
	status    int
	connError bool
}

// NewMockBackend creates a mock backend and starts its HTTP test server.
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()

	mb := &MockBackend{
		t:           t,
		collections: make(map[string][]model.Record),
	}
	mb.server = httptest.NewServer(http.HandlerFunc(mb.handle))
	t.Cleanup(mb.server.Close)
	return mb
}

// URL returns the base URL of the mock backend server.
func (mb *MockBackend) URL() string {
	return mb.server.URL
}

// Seed inserts records into a collection. Records without an _id get one
// assigned.
func (mb *MockBackend) Seed(collection string, records ...map[string]any) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for _, raw := range records {
		rec := model.Record(raw)
		if rec.ID() == "" {
			mb.nextID++
			rec["_id"] = fmt.Sprintf("seed-%d", mb.nextID)
		}
		mb.collections[collection] = append(mb.collections[collection], rec)
	}
}

// Record returns a stored record by identifier, or nil.
func (mb *MockBackend) Record(collection, id string) model.Record {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for _, rec := range mb.collections[collection] {
		if rec.ID() == id {
			return rec
		}
	}
	return nil
}

// FailNext makes the next n requests fail with the given status before normal
// handling resumes.
func (mb *MockBackend) FailNext(n, status int) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := 0; i < n; i++ {
		mb.failures = append(mb.failures, plannedFailure{status: status})
	}
}

// FailNextWithConnectionError makes the next n requests drop the connection.
func (mb *MockBackend) FailNextWithConnectionError(n int) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := 0; i < n; i++ {
		mb.failures = append(mb.failures, plannedFailure{connError: true})
	}
}

// RequestCount returns how many requests matched the method and path prefix.
func (mb *MockBackend) RequestCount(method, pathPrefix string) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	count := 0
	for _, req := range mb.requests {
		if req.Method == method && strings.HasPrefix(req.Path, pathPrefix) {
			count++
		}
	}
	return count
}

// LastRequest returns the most recent request matching the method and path
// prefix, or nil.
func (mb *MockBackend) LastRequest(method, pathPrefix string) *RecordedRequest {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.requests) - 1; i >= 0; i-- {
		req := mb.requests[i]
		if req.Method == method && strings.HasPrefix(req.Path, pathPrefix) {
			return req
		}
	}
	return nil
}

func (mb *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	rec := &RecordedRequest{
		Method:     r.Method,
		Path:       r.URL.Path,
		ReceivedAt: time.Now(),
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(data, &parsed); err == nil {
				rec.Body = parsed
			}
		}
	}

	mb.mu.Lock()
	mb.requests = append(mb.requests, rec)

	if len(mb.failures) > 0 {
		failure := mb.failures[0]
		mb.failures = mb.failures[1:]
		mb.mu.Unlock()

		if failure.connError {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, _ := hj.Hijack(); conn != nil {
					conn.Close()
				}
			}
			return
		}
		writeMockJSON(w, failure.status, map[string]string{"error": "scripted failure"})
		return
	}
	defer mb.mu.Unlock()

	collection, id := splitCollectionPath(r.URL.Path)
	if collection == "" {
		writeMockJSON(w, http.StatusNotFound, map[string]string{"error": "unknown path"})
		return
	}

	switch {
	case r.Method == http.MethodGet && id == "":
		records := mb.collections[collection]
		out := make([]model.Record, len(records))
		copy(out, records)
		writeMockJSON(w, http.StatusOK, out)

	case r.Method == http.MethodGet:
		if rec := mb.findLocked(collection, id); rec != nil {
			writeMockJSON(w, http.StatusOK, rec)
			return
		}
		writeMockJSON(w, http.StatusNotFound, map[string]string{"error": "registro no encontrado"})

	case r.Method == http.MethodPost:
		mb.nextID++
		created := model.Record{"_id": fmt.Sprintf("gen-%d", mb.nextID)}
		for k, v := range rec.Body {
			created[k] = v
		}
		mb.collections[collection] = append(mb.collections[collection], created)
		writeMockJSON(w, http.StatusCreated, created)

	case r.Method == http.MethodPut:
		records := mb.collections[collection]
		for i, stored := range records {
			if stored.ID() == id {
				updated := model.Record{"_id": id}
				for k, v := range rec.Body {
					updated[k] = v
				}
				records[i] = updated
				writeMockJSON(w, http.StatusOK, updated)
				return
			}
		}
		writeMockJSON(w, http.StatusNotFound, map[string]string{"error": "registro no encontrado"})

	case r.Method == http.MethodDelete:
		records := mb.collections[collection]
		for i, stored := range records {
			if stored.ID() == id {
				mb.collections[collection] = append(records[:i], records[i+1:]...)
				writeMockJSON(w, http.StatusOK, map[string]string{"mensaje": "eliminado"})
				return
			}
		}
		writeMockJSON(w, http.StatusNotFound, map[string]string{"error": "registro no encontrado"})

	default:
		writeMockJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "unsupported method"})
	}
}

func (mb *MockBackend) findLocked(collection, id string) model.Record {
	for _, rec := range mb.collections[collection] {
		if rec.ID() == id {
			return rec
		}
	}
	return nil
}

// splitCollectionPath parses "/hoteles" or "/hoteles/h1" into its parts.
func splitCollectionPath(path string) (collection, id string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 1:
		return parts[0], ""
	case 2:
		return parts[0], parts[1]
	}
	return "", ""
}

func writeMockJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
