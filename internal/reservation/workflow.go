package reservation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lunahq/posada/internal/backend"
	"github.com/lunahq/posada/internal/config"
	"github.com/lunahq/posada/internal/record"
	"github.com/lunahq/posada/model"
)

// Backend collection endpoints and field names the workflow touches.
const (
	hotelsEndpoint       = "/hoteles"
	roomsEndpoint        = "/habitaciones"
	servicesEndpoint     = "/servicios-adicionales"
	reservationsEndpoint = "/reservas"

	fieldHotelID   = "idHotel"
	fieldRoomState = "estado"
)

// Recorder receives one event per reservation workflow transition.
type Recorder interface {
	RecordReservation(event, outcome string)
}

// DraftPatch is a partial update to a session draft. Nil pointers leave the
// corresponding draft field untouched. ToggleService adds the service when
// absent and removes it when present.
type DraftPatch struct {
	RoomID        *string `json:"room_id"`
	CheckIn       *string `json:"check_in"`
	CheckOut      *string `json:"check_out"`
	PaymentMethod *string `json:"payment_method"`
	ToggleService *string `json:"toggle_service"`
}

// Engine drives reservation sessions from creation through submission. Safe
// for concurrent use; per-session consistency comes from the store's
// optimistic locking, not from engine-level locks.
type Engine struct {
	client  backend.Client
	store   Store
	cfg     config.ReservationConfig
	logger  *zap.Logger
	metrics Recorder
	now     func() time.Time

	// closeCtx bounds the delayed close goroutines to the engine lifetime.
	closeCtx    context.Context
	cancelClose context.CancelFunc
	wg          sync.WaitGroup
}

// NewEngine creates a reservation engine. metrics may be nil.
func NewEngine(client backend.Client, store Store, cfg config.ReservationConfig, logger *zap.Logger, metrics Recorder) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		client:      client,
		store:       store,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
		closeCtx:    ctx,
		cancelClose: cancel,
	}
}

// Shutdown stops the delayed close timers and waits for in-flight ones.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.cancelClose()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start opens a new session for a client booking a stay at a hotel. The
// hotel, its bookable rooms, and the service catalog are loaded up front; a
// load failure is recorded on the session rather than aborting it, so the
// caller can retry or proceed with what is there.
func (e *Engine) Start(ctx context.Context, hotelID, clientID string) (*model.ReservationSession, error) {
	if hotelID == "" {
		return nil, model.NewBadRequestError("hotel_id is required")
	}
	if clientID == "" {
		return nil, model.NewBadRequestError("client_id is required")
	}

	now := e.now()
	expires := now.Add(e.cfg.SessionTTL)
	session := &model.ReservationSession{
		ID:       uuid.NewString(),
		HotelID:  hotelID,
		ClientID: clientID,
		Status:   model.SessionCollecting,
		Draft: model.ReservationDraft{
			PaymentMethod: model.PaymentCard,
			Status:        model.DeriveReservationStatus(model.PaymentCard),
		},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: &expires,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hotel, err := e.client.Retrieve(gctx, hotelsEndpoint, hotelID)
		if err != nil {
			return err
		}
		session.Hotel = hotel
		return nil
	})
	g.Go(func() error {
		body, err := e.client.List(gctx, roomsEndpoint)
		if err != nil {
			return err
		}
		session.Rooms = bookableRooms(backend.Items(body), hotelID)
		return nil
	})
	g.Go(func() error {
		body, err := e.client.List(gctx, servicesEndpoint)
		if err != nil {
			return err
		}
		session.Services = backend.Items(body)
		return nil
	})
	if err := g.Wait(); err != nil {
		session.LoadError = errorText(err)
		e.logger.Warn("reservation: session data load failed",
			zap.String("hotel_id", hotelID),
			zap.Error(err),
		)
	}

	if err := e.store.Create(ctx, session); err != nil {
		return nil, err
	}
	e.record("start", "ok")
	return session, nil
}

// Get returns a session by identifier. Expired sessions are removed and
// reported as missing.
func (e *Engine) Get(ctx context.Context, id string) (*model.ReservationSession, error) {
	session, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.ExpiresAt != nil && session.ExpiresAt.Before(e.now()) {
		_ = e.store.Delete(ctx, id)
		return nil, model.NewSessionNotFoundError("session has expired: " + id)
	}
	return session, nil
}

// Quote prices the session's current draft.
func (e *Engine) Quote(session *model.ReservationSession) Quote {
	return Price(session.Draft, session.Rooms, session.Services)
}

// UpdateDraft applies a patch to the session draft. Editing a failed session
// returns it to input collection.
func (e *Engine) UpdateDraft(ctx context.Context, id string, patch DraftPatch) (*model.ReservationSession, error) {
	session, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, model.NewSessionNotActiveError("session no longer accepts changes")
	}

	if patch.RoomID != nil {
		roomID := *patch.RoomID
		if roomID != "" {
			if _, ok := findByID(session.Rooms, roomID); !ok {
				return nil, model.NewBadRequestError("room is not bookable at this hotel: " + roomID)
			}
		}
		session.Draft.RoomID = roomID
	}
	if patch.CheckIn != nil {
		if err := validDraftDate(*patch.CheckIn); err != nil {
			return nil, err
		}
		session.Draft.CheckIn = *patch.CheckIn
	}
	if patch.CheckOut != nil {
		if err := validDraftDate(*patch.CheckOut); err != nil {
			return nil, err
		}
		session.Draft.CheckOut = *patch.CheckOut
	}
	if patch.PaymentMethod != nil {
		method := *patch.PaymentMethod
		if method != model.PaymentCard && method != model.PaymentCash {
			return nil, model.NewBadRequestError("unsupported payment method: " + method)
		}
		session.Draft.PaymentMethod = method
		session.Draft.Status = model.DeriveReservationStatus(method)
	}
	if patch.ToggleService != nil {
		toggleService(&session.Draft, *patch.ToggleService)
	}

	if session.Status == model.SessionFailed {
		session.Status = model.SessionCollecting
		session.Error = ""
	}

	if err := e.store.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Submit prices the draft, writes the reservation with its embedded invoice
// to the backend, and advances the session. Card payments land in the
// invoice-ready state; cash payments close automatically after the success
// message has had time to show.
func (e *Engine) Submit(ctx context.Context, id string) (*model.ReservationSession, error) {
	session, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, model.NewSessionNotActiveError("session no longer accepts a submission")
	}
	if fieldErrs := missingDraftFields(session.Draft); len(fieldErrs) > 0 {
		e.record("submit", "invalid")
		return nil, model.NewValidationError(fieldErrs)
	}

	// Taking the submitting state first makes concurrent submits lose on the
	// version check instead of double-booking.
	session.Status = model.SessionSubmitting
	session.Message = ""
	session.Error = ""
	if err := e.store.Update(ctx, session); err != nil {
		return nil, err
	}

	quote := e.Quote(session)
	now := e.now()
	payload := e.buildPayload(session, quote, now)

	created, err := e.client.Create(ctx, reservationsEndpoint, payload)
	if err != nil {
		session.Status = model.SessionFailed
		session.Error = errorText(err)
		if storeErr := e.store.Update(ctx, session); storeErr != nil {
			e.logger.Error("reservation: failed to persist submit failure",
				zap.String("session_id", session.ID),
				zap.Error(storeErr),
			)
		}
		e.record("submit", "error")
		return session, nil
	}

	session.ReservationID = created.ID()
	if session.Draft.PaymentMethod == model.PaymentCard {
		session.Status = model.SessionInvoiceReady
		session.Invoice = e.buildInvoiceView(session, payload, quote)
	} else {
		session.Message = "Reservation created successfully"
		e.scheduleClose(session.ID)
	}

	if err := e.store.Update(ctx, session); err != nil {
		return nil, err
	}
	e.record("submit", "ok")
	e.logger.Info("reservation: created",
		zap.String("session_id", session.ID),
		zap.String("reservation_id", session.ReservationID),
		zap.String("payment_method", session.Draft.PaymentMethod),
		zap.Float64("total", quote.Total),
	)
	return session, nil
}

// DismissInvoice acknowledges a card invoice and closes the session.
func (e *Engine) DismissInvoice(ctx context.Context, id string) (*model.ReservationSession, error) {
	session, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionInvoiceReady {
		return nil, model.NewInvalidStateError("no invoice to dismiss")
	}
	session.Status = model.SessionClosed
	session.Invoice = nil
	if err := e.store.Update(ctx, session); err != nil {
		return nil, err
	}
	e.record("close", "ok")
	return session, nil
}

// Run purges expired sessions periodically until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := e.store.PurgeExpired(ctx, e.now())
			if err != nil {
				e.logger.Warn("reservation: purge failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				e.logger.Debug("reservation: purged expired sessions", zap.Int("count", purged))
			}
		}
	}
}

// scheduleClose closes a cash-paid session once the success message has been
// visible for the configured delay. The timer runs on the engine lifetime,
// not the request.
func (e *Engine) scheduleClose(id string) {
	delay := e.cfg.CloseDelay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-e.closeCtx.Done():
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		session, err := e.store.Get(ctx, id)
		if err != nil {
			return
		}
		if session.Status != model.SessionSubmitting {
			return
		}
		session.Status = model.SessionClosed
		if err := e.store.Update(ctx, session); err != nil {
			e.logger.Warn("reservation: delayed close failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
			return
		}
		e.record("close", "ok")
	}()
}

func (e *Engine) buildPayload(session *model.ReservationSession, quote Quote, now time.Time) model.Record {
	draft := session.Draft

	paymentDate := toISODate(draft.CheckIn)
	if draft.PaymentMethod == model.PaymentCard {
		paymentDate = now.Format(time.RFC3339)
	}

	services := draft.ServiceIDs
	if services == nil {
		services = []string{}
	}

	payload := record.NewPayload()
	payload.Set("idCliente", session.ClientID)
	payload.Set("idHabitacion", draft.RoomID)
	payload.Set("fechaEntrada", toISODate(draft.CheckIn))
	payload.Set("fechaSalida", toISODate(draft.CheckOut))
	payload.Set("estadoReserva", draft.Status)
	payload.Set("servicios", services)
	payload.Set("factura.numeroFactura", fmt.Sprintf("FAC-%d", now.UnixMilli()))
	payload.Set("factura.fechaPago", paymentDate)
	payload.Set("factura.montoTotal", quote.Total)
	payload.Set("factura.metodoPago", draft.PaymentMethod)
	return payload.Record()
}

func (e *Engine) buildInvoiceView(session *model.ReservationSession, payload model.Record, quote Quote) *model.InvoiceView {
	room, _ := findByID(session.Rooms, session.Draft.RoomID)

	selected := make([]model.Record, 0, len(session.Draft.ServiceIDs))
	for _, svcID := range session.Draft.ServiceIDs {
		if svc, ok := findByID(session.Services, svcID); ok {
			selected = append(selected, svc)
		}
	}

	invoice := model.Invoice{}
	if v, ok := record.Get(payload, "factura.numeroFactura"); ok {
		invoice.Number, _ = v.(string)
	}
	if v, ok := record.Get(payload, "factura.fechaPago"); ok {
		invoice.PaymentDate, _ = v.(string)
	}
	invoice.Total = quote.Total
	invoice.PaymentMethod = session.Draft.PaymentMethod

	return &model.InvoiceView{
		Hotel:         session.Hotel,
		Room:          room,
		Services:      selected,
		ReservationID: session.ReservationID,
		Invoice:       invoice,
		CheckIn:       session.Draft.CheckIn,
		CheckOut:      session.Draft.CheckOut,
		Nights:        int(math.Ceil(quote.Nights)),
	}
}

func (e *Engine) record(event, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordReservation(event, outcome)
	}
}

// bookableRooms keeps the rooms that belong to the hotel and have not been
// retired.
func bookableRooms(rooms []model.Record, hotelID string) []model.Record {
	out := make([]model.Record, 0, len(rooms))
	for _, room := range rooms {
		owner, _ := record.Get(room, fieldHotelID)
		state, _ := record.Get(room, fieldRoomState)
		if owner == hotelID && state != model.RoomStatusInactive {
			out = append(out, room)
		}
	}
	return out
}

func toggleService(draft *model.ReservationDraft, id string) {
	if id == "" {
		return
	}
	if draft.HasService(id) {
		kept := make([]string, 0, len(draft.ServiceIDs)-1)
		for _, s := range draft.ServiceIDs {
			if s != id {
				kept = append(kept, s)
			}
		}
		draft.ServiceIDs = kept
		return
	}
	draft.ServiceIDs = append(draft.ServiceIDs, id)
}

func missingDraftFields(draft model.ReservationDraft) []model.FieldError {
	var errs []model.FieldError
	if draft.RoomID == "" {
		errs = append(errs, model.FieldError{Field: "room_id", Code: "required", Message: "a room must be selected"})
	}
	if draft.CheckIn == "" {
		errs = append(errs, model.FieldError{Field: "check_in", Code: "required", Message: "a check-in date must be set"})
	}
	if draft.CheckOut == "" {
		errs = append(errs, model.FieldError{Field: "check_out", Code: "required", Message: "a check-out date must be set"})
	}
	return errs
}

func validDraftDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := parseDate(s); err != nil {
		return model.NewBadRequestError("invalid date: " + s)
	}
	return nil
}

// toISODate renders a draft date as an RFC 3339 timestamp at UTC midnight.
// Text that does not parse is passed through untouched.
func toISODate(s string) string {
	t, err := parseDate(s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}

func errorText(err error) string {
	var envelope *model.ErrorEnvelope
	if errors.As(err, &envelope) {
		return envelope.Message
	}
	return err.Error()
}
