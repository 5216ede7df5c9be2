// Package crud implements the schema-driven resource controllers. One
// controller per collection owns the table items, the form state, and the
// load lifecycle; every behavior it exhibits is derived from the resource
// schema plus an optional set of collection hooks.
package crud

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/backend"
	"github.com/lunahq/posada/internal/form"
	"github.com/lunahq/posada/internal/table"
	"github.com/lunahq/posada/model"
)

// LoadState is the lifecycle of a collection fetch.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateLoaded  LoadState = "loaded"
	StateFailed  LoadState = "failed"
)

// OpRecorder receives one event per completed controller operation.
type OpRecorder interface {
	RecordResourceOp(collection, op, outcome string)
}

// View is the JSON projection of a controller's current state.
type View struct {
	Collection  string              `json:"collection"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	State       LoadState           `json:"state"`
	Fields      []model.FieldSchema `json:"fields"`
	Columns     []string            `json:"columns"`
	Rows        []table.Row         `json:"rows"`
	Form        model.FormState     `json:"form"`
	EditingID   string              `json:"editing_id,omitempty"`
	Message     string              `json:"message,omitempty"`
	Error       string              `json:"error,omitempty"`
	Search      *SearchResult       `json:"search,omitempty"`
}

// SearchResult is the outcome of a lookup by identifier.
type SearchResult struct {
	ID     string       `json:"id"`
	Record model.Record `json:"record,omitempty"`
	Row    *table.Row   `json:"row,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Controller drives one collection. Safe for concurrent use; each operation
// holds the controller lock for its in-memory transitions and releases it
// around backend calls only where staleness is acceptable.
type Controller struct {
	schema  *model.ResourceSchema
	engine  *form.Engine
	client  backend.Client
	hooks   Hooks
	logger  *zap.Logger
	metrics OpRecorder

	mu        sync.Mutex
	state     LoadState
	items     []model.Record
	formState model.FormState
	editingID string
	message   string
	errMsg    string
	search    *SearchResult
}

// NewController creates a controller for one schema. hooks may be nil.
func NewController(schema *model.ResourceSchema, client backend.Client, hooks Hooks, logger *zap.Logger, metrics OpRecorder) *Controller {
	if hooks == nil {
		hooks = noHooks{}
	}
	engine := form.NewEngine(schema)
	return &Controller{
		schema:    schema,
		engine:    engine,
		client:    client,
		hooks:     hooks,
		logger:    logger.With(zap.String("collection", collectionOf(schema))),
		metrics:   metrics,
		state:     StateIdle,
		formState: engine.EmptyState(),
	}
}

// Schema returns the controller's immutable resource schema.
func (c *Controller) Schema() *model.ResourceSchema {
	return c.schema
}

// Snapshot renders the controller's current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	columns := make([]string, 0, len(c.schema.Columns))
	for _, col := range c.schema.Columns {
		columns = append(columns, col.Label)
	}
	return View{
		Collection:  collectionOf(c.schema),
		Title:       c.schema.Title,
		Description: c.schema.Description,
		State:       c.state,
		Fields:      c.schema.Fields,
		Columns:     columns,
		Rows:        table.Rows(c.schema, c.items),
		Form:        c.formState.Clone(),
		EditingID:   c.editingID,
		Message:     c.message,
		Error:       c.errMsg,
		Search:      c.search,
	}
}

// FetchAll reloads the collection from the backend. A failed reload keeps the
// previously loaded items on screen and only flags the error; the operator
// decides when to retry.
func (c *Controller) FetchAll(ctx context.Context) View {
	c.mu.Lock()
	c.state = StateLoading
	c.errMsg = ""
	c.mu.Unlock()

	body, err := c.client.List(ctx, c.schema.Endpoint)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		c.errMsg = errorMessage(err)
		c.record("fetch", "error")
		c.logger.Warn("crud: fetch failed", zap.Error(err))
		return c.viewLocked()
	}
	c.state = StateLoaded
	c.items = backend.Items(body)
	c.record("fetch", "ok")
	return c.viewLocked()
}

// SetField applies one edited input value to the form.
func (c *Controller) SetField(name, value string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.engine.ApplyInput(c.formState, name, value)
	if err != nil {
		return View{}, err
	}
	c.formState = next
	return c.viewLocked(), nil
}

// Submit builds the payload from the form and either creates a new record or
// updates the one being edited. On success the form resets and the collection
// is refetched so the table reflects what the backend actually stored.
func (c *Controller) Submit(ctx context.Context) (View, error) {
	c.mu.Lock()
	payload, fieldErrs := c.engine.BuildPayload(c.formState)
	if len(fieldErrs) > 0 {
		c.mu.Unlock()
		c.record("submit", "invalid")
		return View{}, model.NewValidationError(fieldErrs)
	}
	editingID := c.editingID
	c.mu.Unlock()

	var (
		err     error
		effects []SideEffect
	)
	if editingID == "" {
		c.hooks.PrepareCreate(payload)
		_, err = c.client.Create(ctx, c.schema.Endpoint, payload)
		if err == nil {
			effects = c.hooks.AfterCreate(ctx, payload)
		}
	} else {
		_, err = c.client.Update(ctx, c.schema.Endpoint, editingID, payload)
	}

	if err != nil {
		c.mu.Lock()
		c.errMsg = errorMessage(err)
		c.message = ""
		view := c.viewLocked()
		c.mu.Unlock()
		c.record("submit", "error")
		return view, err
	}

	c.mu.Lock()
	c.formState = c.engine.EmptyState()
	c.editingID = ""
	c.errMsg = ""
	if editingID == "" {
		c.message = "Record created"
	} else {
		c.message = "Record updated"
	}
	c.noteSideEffects(effects)
	c.mu.Unlock()
	c.record("submit", "ok")

	return c.FetchAll(ctx), nil
}

// Edit loads a record into the form for updating. The in-memory items are
// consulted first; a record not present there is retrieved from the backend.
func (c *Controller) Edit(ctx context.Context, id string) (View, error) {
	rec, ok := c.itemByID(id)
	if !ok {
		var err error
		rec, err = c.client.Retrieve(ctx, c.schema.Endpoint, id)
		if err != nil {
			c.record("edit", "error")
			return View{}, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = id
	c.formState = c.engine.BuildState(rec)
	c.message = ""
	c.errMsg = ""
	c.record("edit", "ok")
	return c.viewLocked(), nil
}

// CancelEdit discards the edit in progress and resets the form.
func (c *Controller) CancelEdit() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = ""
	c.formState = c.engine.EmptyState()
	return c.viewLocked()
}

// Remove deletes the record, or lets the collection hooks substitute their
// own removal behavior. The collection is refetched afterwards either way.
func (c *Controller) Remove(ctx context.Context, id string) (View, error) {
	rec, _ := c.itemByID(id)

	handled, effects, err := c.hooks.Remove(ctx, id, rec)
	if !handled && err == nil {
		err = c.client.Remove(ctx, c.schema.Endpoint, id)
	}

	if err != nil {
		c.mu.Lock()
		c.errMsg = errorMessage(err)
		view := c.viewLocked()
		c.mu.Unlock()
		c.record("remove", "error")
		return view, err
	}

	c.mu.Lock()
	c.message = "Record removed"
	c.errMsg = ""
	if c.editingID == id {
		c.editingID = ""
		c.formState = c.engine.EmptyState()
	}
	c.noteSideEffects(effects)
	c.mu.Unlock()
	c.record("remove", "ok")

	return c.FetchAll(ctx), nil
}

// SearchByID retrieves one record by identifier. A failed lookup clears any
// previous result so the view never shows a stale hit next to a fresh error.
func (c *Controller) SearchByID(ctx context.Context, id string) View {
	rec, err := c.client.Retrieve(ctx, c.schema.Endpoint, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.search = &SearchResult{ID: id, Error: errorMessage(err)}
		c.record("search", "error")
		return c.viewLocked()
	}
	rows := table.Rows(c.schema, []model.Record{rec})
	result := &SearchResult{ID: id, Record: rec}
	if len(rows) == 1 {
		result.Row = &rows[0]
	}
	c.search = result
	c.record("search", "ok")
	return c.viewLocked()
}

// ClearMessages drops the transient message and error texts.
func (c *Controller) ClearMessages() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = ""
	c.errMsg = ""
	return c.viewLocked()
}

func (c *Controller) itemByID(id string) (model.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.items {
		if rec.ID() == id {
			return rec, true
		}
	}
	return nil, false
}

// noteSideEffects logs secondary outcomes and appends a warning to the
// message when a best-effort follow-up write did not land.
func (c *Controller) noteSideEffects(effects []SideEffect) {
	for _, effect := range effects {
		if effect.Err == nil {
			c.logger.Debug("crud: side effect applied", zap.String("effect", effect.Name))
			continue
		}
		c.logger.Warn("crud: side effect failed",
			zap.String("effect", effect.Name),
			zap.Error(effect.Err),
		)
		c.message += " (a related update could not be applied)"
	}
}

func (c *Controller) record(op, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordResourceOp(collectionOf(c.schema), op, outcome)
	}
}

// errorMessage unwraps coded envelopes so views show the human message, not
// the code prefix.
func errorMessage(err error) string {
	var envelope *model.ErrorEnvelope
	if errors.As(err, &envelope) {
		return envelope.Message
	}
	return err.Error()
}
