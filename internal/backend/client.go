// Package backend contains the HTTP client for the reservation backend's
// collection API. The backend is a black box exposing uniform list, retrieve,
// create, update, and remove operations over JSON collections; everything in
// this package is transport plumbing, never business logic.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/config"
	"github.com/lunahq/posada/model"
)

// Client is the backend collaborator consumed by the CRUD controllers and the
// reservation workflow. It is injected explicitly so cores stay testable with
// a fake.
type Client interface {
	// List fetches a full collection. The body is either a raw JSON array or
	// an object wrapping one; use Items to normalize.
	List(ctx context.Context, endpoint string) (any, error)

	// Retrieve fetches a single record by identifier.
	Retrieve(ctx context.Context, endpoint, id string) (model.Record, error)

	// Create persists a new record and returns it with its assigned identifier.
	Create(ctx context.Context, endpoint string, payload model.Record) (model.Record, error)

	// Update replaces the record at the identifier and returns the result.
	Update(ctx context.Context, endpoint, id string, payload model.Record) (model.Record, error)

	// Remove deletes the record at the identifier.
	Remove(ctx context.Context, endpoint, id string) error
}

// Items normalizes a list response into an ordered record slice. A raw array
// is used as-is; for a wrapping object the first array-valued property (by
// sorted key, so the choice is deterministic) is treated as the collection.
// Entries that are not JSON objects are dropped.
func Items(body any) []model.Record {
	arr, ok := body.([]any)
	if !ok {
		m, isMap := body.(map[string]any)
		if !isMap {
			return nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if a, isArr := m[k].([]any); isArr {
				arr = a
				break
			}
		}
	}

	records := make([]model.Record, 0, len(arr))
	for _, item := range arr {
		if m, isMap := item.(map[string]any); isMap {
			records = append(records, model.Record(m))
		}
	}
	return records
}

// HTTPClient implements Client over the backend's REST API with retry and
// circuit breaker support.
type HTTPClient struct {
	cfg     config.BackendConfig
	client  *http.Client
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewHTTPClient creates a backend client from configuration.
func NewHTTPClient(cfg config.BackendConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	cb := cfg.CircuitBreaker
	return &HTTPClient{
		cfg: cfg,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		breaker: NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout),
		logger:  logger,
	}
}

// List implements Client.
func (c *HTTPClient) List(ctx context.Context, endpoint string) (any, error) {
	return c.do(ctx, http.MethodGet, collectionPath(endpoint), nil)
}

// Retrieve implements Client.
func (c *HTTPClient) Retrieve(ctx context.Context, endpoint, id string) (model.Record, error) {
	body, err := c.do(ctx, http.MethodGet, itemPath(endpoint, id), nil)
	if err != nil {
		return nil, err
	}
	return asRecord(body), nil
}

// Create implements Client.
func (c *HTTPClient) Create(ctx context.Context, endpoint string, payload model.Record) (model.Record, error) {
	body, err := c.do(ctx, http.MethodPost, collectionPath(endpoint), payload)
	if err != nil {
		return nil, err
	}
	return asRecord(body), nil
}

// Update implements Client.
func (c *HTTPClient) Update(ctx context.Context, endpoint, id string, payload model.Record) (model.Record, error) {
	body, err := c.do(ctx, http.MethodPut, itemPath(endpoint, id), payload)
	if err != nil {
		return nil, err
	}
	return asRecord(body), nil
}

// Remove implements Client.
func (c *HTTPClient) Remove(ctx context.Context, endpoint, id string) error {
	_, err := c.do(ctx, http.MethodDelete, itemPath(endpoint, id), nil)
	return err
}

// HealthCheck probes the backend base URL for reachability. Any HTTP response
// counts as reachable, so the status code is ignored; only a transport failure
// reports unhealthy. The probe bypasses retry and the circuit breaker: a
// readiness check must see the backend as it is right now.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("backend: build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// do executes one logical backend request with retry and backoff.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) (any, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal body: %w", err)
		}
	}

	retryCfg := c.cfg.Retry
	maxAttempts := retryCfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	canRetry := isIdempotentMethod(method) || !retryCfg.IdempotentOnly

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(retryCfg, attempt)
			select {
			case <-ctx.Done():
				return nil, model.NewBackendTimeoutError()
			case <-time.After(delay):
			}
		}

		body, retryable, err := c.executeOnce(ctx, method, path, bodyBytes)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !canRetry || !retryable {
			return nil, err
		}
		c.logger.Debug("backend: retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// executeOnce performs a single HTTP request with circuit breaker protection.
// The boolean reports whether the failure is retryable.
func (c *HTTPClient) executeOnce(ctx context.Context, method, path string, bodyBytes []byte) (any, bool, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, false, model.NewBackendUnavailableError()
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, false, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		if ctx.Err() != nil {
			return nil, false, model.NewBackendTimeoutError()
		}
		if isConnectionError(err) {
			return nil, true, model.NewBackendUnavailableError()
		}
		return nil, true, fmt.Errorf("backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		c.breaker.RecordFailure()
		return nil, true, fmt.Errorf("backend: read response: %w", err)
	}

	var parsed any
	if len(respBody) > 0 {
		// A non-JSON body is treated as absent, mirroring how the console
		// tolerates empty delete acknowledgements.
		_ = json.Unmarshal(respBody, &parsed)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		}
		return nil, isRetryableStatus(resp.StatusCode), model.NewBackendError(failureMessage(parsed, resp))
	}

	c.breaker.RecordSuccess()
	return parsed, false, nil
}

// failureMessage extracts the error message for a non-2xx response: the
// body's "error" field when present, else the transport status text.
func failureMessage(parsed any, resp *http.Response) string {
	if m, ok := parsed.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok && msg != "" {
			return msg
		}
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "Request failed"
}

func asRecord(body any) model.Record {
	if m, ok := body.(map[string]any); ok {
		return model.Record(m)
	}
	return model.Record{}
}

func collectionPath(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}

func itemPath(endpoint, id string) string {
	return collectionPath(endpoint) + "/" + url.PathEscape(id)
}

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}

	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			delay = cfg.BackoffMax
			break
		}
	}
	return delay
}
