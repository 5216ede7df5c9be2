package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/observability"
	"github.com/lunahq/posada/internal/reservation"
	"github.com/lunahq/posada/model"
)

// ReservationHandler serves the reservation workflow endpoints.
type ReservationHandler struct {
	engine *reservation.Engine
	logger *zap.Logger
}

// NewReservationHandler creates a ReservationHandler.
func NewReservationHandler(engine *reservation.Engine, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{engine: engine, logger: logger}
}

// sessionResponse pairs a session with the live quote for its draft.
type sessionResponse struct {
	Session *model.ReservationSession `json:"session"`
	Quote   reservation.Quote         `json:"quote"`
}

func (h *ReservationHandler) respond(w http.ResponseWriter, status int, session *model.ReservationSession) {
	WriteJSON(w, status, sessionResponse{
		Session: session,
		Quote:   h.engine.Quote(session),
	})
}

// startInput is the body of a session start request.
type startInput struct {
	HotelID  string `json:"hotel_id"`
	ClientID string `json:"client_id"`
}

// HandleStart opens a new reservation session. When no client is named the
// session is booked for the authenticated subject.
func (h *ReservationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var input startInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if input.ClientID == "" {
		if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
			input.ClientID = rctx.SubjectID
		}
	}

	session, err := h.engine.Start(r.Context(), input.HotelID, input.ClientID)
	if err != nil {
		WriteError(w, err)
		return
	}
	observability.RequestLogger(r.Context(), h.logger).Info("reservation session started",
		zap.String("session_id", session.ID),
		zap.String("hotel_id", session.HotelID),
	)
	h.respond(w, http.StatusCreated, session)
}

// HandleGet returns a session and its current quote.
func (h *ReservationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	h.respond(w, http.StatusOK, session)
}

// HandleDraft applies a partial update to the session draft.
func (h *ReservationHandler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	var patch reservation.DraftPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	session, err := h.engine.UpdateDraft(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.respond(w, http.StatusOK, session)
}

// HandleSubmit submits the session's draft as a reservation.
func (h *ReservationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	h.respond(w, http.StatusOK, session)
}

// HandleDismissInvoice acknowledges the invoice and closes the session.
func (h *ReservationHandler) HandleDismissInvoice(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.DismissInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	h.respond(w, http.StatusOK, session)
}
