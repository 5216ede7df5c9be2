package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/crud"
	"github.com/lunahq/posada/internal/observability"
	"github.com/lunahq/posada/model"
)

// ResourceHandler serves the schema-driven resource console endpoints.
type ResourceHandler struct {
	manager *crud.Manager
	logger  *zap.Logger
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(manager *crud.Manager, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{manager: manager, logger: logger}
}

// resourceSummary is one entry of the resource index.
type resourceSummary struct {
	Collection  string `json:"collection"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// HandleIndex lists the registered collections.
func (h *ResourceHandler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	controllers := h.manager.Controllers()
	out := make([]resourceSummary, 0, len(controllers))
	for _, ctrl := range controllers {
		view := ctrl.Snapshot()
		out = append(out, resourceSummary{
			Collection:  view.Collection,
			Title:       view.Title,
			Description: view.Description,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"resources": out})
}

// HandleView returns the current state of one collection's console.
func (h *ResourceHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, ctrl.Snapshot())
}

// HandleRefresh reloads the collection from the backend.
func (h *ResourceHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, ctrl.FetchAll(r.Context()))
}

// fieldInput is the body of a form field update.
type fieldInput struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// HandleFormInput applies one edited field value to the form.
func (h *ResourceHandler) HandleFormInput(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var input fieldInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if input.Field == "" {
		WriteError(w, model.NewBadRequestError("field is required"))
		return
	}

	view, err := ctrl.SetField(input.Field, input.Value)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleSubmit submits the form, creating or updating a record.
func (h *ResourceHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	view, err := ctrl.Submit(r.Context())
	if err != nil {
		observability.RequestLogger(r.Context(), h.logger).Warn("resource submit failed",
			zap.String("collection", chi.URLParam(r, "collection")),
			zap.Error(err),
		)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleEdit loads a record into the form for updating.
func (h *ResourceHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	view, err := ctrl.Edit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleCancel discards the edit in progress.
func (h *ResourceHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, ctrl.CancelEdit())
}

// HandleRemove removes a record.
func (h *ResourceHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	view, err := ctrl.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleSearch looks up a single record by identifier.
func (h *ResourceHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, ctrl.SearchByID(r.Context(), chi.URLParam(r, "id")))
}

func (h *ResourceHandler) controller(w http.ResponseWriter, r *http.Request) (*crud.Controller, bool) {
	collection := chi.URLParam(r, "collection")
	ctrl, ok := h.manager.Controller(collection)
	if !ok {
		WriteNotFound(w, "unknown collection: "+collection)
		return nil, false
	}
	return ctrl, true
}
