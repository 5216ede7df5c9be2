package reservation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/config"
	"github.com/lunahq/posada/internal/record"
	"github.com/lunahq/posada/model"
)

// stubBackend serves canned collection data and captures reservation creates.
type stubBackend struct {
	hotel    model.Record
	rooms    []any
	services []any

	listErr   error
	createErr error
	created   model.Record
	payload   model.Record
}

func (s *stubBackend) List(_ context.Context, endpoint string) (any, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	switch endpoint {
	case roomsEndpoint:
		return s.rooms, nil
	case servicesEndpoint:
		return s.services, nil
	}
	return []any{}, nil
}

func (s *stubBackend) Retrieve(_ context.Context, endpoint, id string) (model.Record, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if endpoint == hotelsEndpoint {
		return s.hotel, nil
	}
	return nil, model.NewNotFoundError("record not found")
}

func (s *stubBackend) Create(_ context.Context, endpoint string, payload model.Record) (model.Record, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.payload = payload
	if s.created != nil {
		return s.created, nil
	}
	return model.Record{"_id": "res-1"}, nil
}

func (s *stubBackend) Update(_ context.Context, endpoint, id string, payload model.Record) (model.Record, error) {
	return payload, nil
}

func (s *stubBackend) Remove(_ context.Context, endpoint, id string) error {
	return nil
}

func defaultBackend() *stubBackend {
	return &stubBackend{
		hotel: model.Record{"_id": "h1", "nombreHotel": "Hotel Azul"},
		rooms: []any{
			map[string]any{"_id": "r1", fieldHotelID: "h1", fieldRoomState: "Disponible", fieldNightPrice: float64(100)},
			map[string]any{"_id": "r2", fieldHotelID: "h1", fieldRoomState: model.RoomStatusInactive},
			map[string]any{"_id": "r3", fieldHotelID: "other", fieldRoomState: "Disponible"},
		},
		services: []any{
			map[string]any{"_id": "s1", "nombre": "Desayuno", fieldServicePrice: float64(25)},
		},
	}
}

func newTestEngine(t *testing.T, client *stubBackend) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	cfg := config.ReservationConfig{
		CloseDelay: 5 * time.Millisecond,
		SessionTTL: time.Hour,
	}
	e := NewEngine(client, store, cfg, zap.NewNop(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e, store
}

func completeDraft(t *testing.T, e *Engine, id string) *model.ReservationSession {
	t.Helper()
	room, checkIn, checkOut := "r1", "2026-03-10", "2026-03-13"
	session, err := e.UpdateDraft(context.Background(), id, DraftPatch{
		RoomID:   &room,
		CheckIn:  &checkIn,
		CheckOut: &checkOut,
	})
	require.NoError(t, err)
	return session
}

func TestEngine_Start(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())

	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)

	assert.Equal(t, model.SessionCollecting, session.Status)
	assert.Equal(t, "Hotel Azul", session.Hotel["nombreHotel"])
	assert.NotNil(t, session.ExpiresAt)

	// Only bookable rooms of the requested hotel survive the load.
	require.Len(t, session.Rooms, 1)
	assert.Equal(t, "r1", session.Rooms[0].ID())
	assert.Len(t, session.Services, 1)

	// The draft starts with card payment and the status that method implies.
	assert.Equal(t, model.PaymentCard, session.Draft.PaymentMethod)
	assert.Equal(t, model.ReservationConfirmed, session.Draft.Status)
}

func TestEngine_Start_requiresIdentifiers(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())

	_, err := e.Start(context.Background(), "", "c1")
	require.Error(t, err)
	_, err = e.Start(context.Background(), "h1", "")
	require.Error(t, err)
}

func TestEngine_Start_loadFailureKeepsSession(t *testing.T) {
	client := defaultBackend()
	client.listErr = model.NewBackendError("backend down")
	e, _ := newTestEngine(t, client)

	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err, "a data load failure must not abort the session")
	assert.Equal(t, "backend down", session.LoadError)
	assert.Equal(t, model.SessionCollecting, session.Status)
}

func TestEngine_Get_expiredSessionIsRemoved(t *testing.T) {
	e, store := newTestEngine(t, defaultBackend())

	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)

	e.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = e.Get(context.Background(), session.ID)
	require.Error(t, err)
	assert.Equal(t, model.ErrSessionNotFound, err.(*model.ErrorEnvelope).Code)

	// The expired session is gone from the store, not just hidden.
	_, err = store.Get(context.Background(), session.ID)
	require.Error(t, err)
}

func TestEngine_UpdateDraft(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())
	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)

	updated := completeDraft(t, e, session.ID)
	assert.Equal(t, "r1", updated.Draft.RoomID)
	assert.Equal(t, "2026-03-10", updated.Draft.CheckIn)

	cash := model.PaymentCash
	updated, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{PaymentMethod: &cash})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, updated.Draft.Status, "cash payment leaves the reservation pending")

	card := model.PaymentCard
	updated, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{PaymentMethod: &card})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, updated.Draft.Status)
}

func TestEngine_UpdateDraft_toggleService(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())
	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)

	svc := "s1"
	updated, err := e.UpdateDraft(context.Background(), session.ID, DraftPatch{ToggleService: &svc})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, updated.Draft.ServiceIDs)

	// Toggling again removes it, and toggling twice more leaves one entry.
	updated, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{ToggleService: &svc})
	require.NoError(t, err)
	assert.Empty(t, updated.Draft.ServiceIDs)
}

func TestEngine_UpdateDraft_rejectsInvalidInput(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())
	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)

	ghost := "r3"
	_, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{RoomID: &ghost})
	require.Error(t, err, "rooms of other hotels are not bookable")

	badMethod := "Cheque"
	_, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{PaymentMethod: &badMethod})
	require.Error(t, err)

	badDate := "10/03/2026"
	_, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{CheckIn: &badDate})
	require.Error(t, err)
}

func TestEngine_UpdateDraft_failedSessionReturnsToCollecting(t *testing.T) {
	client := defaultBackend()
	client.createErr = model.NewBackendError("room taken")
	e, _ := newTestEngine(t, client)

	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)
	completeDraft(t, e, session.ID)

	failed, err := e.Submit(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, failed.Status)
	assert.Equal(t, "room taken", failed.Error)

	// A draft edit clears the failure and reopens input collection.
	checkOut := "2026-03-14"
	updated, err := e.UpdateDraft(context.Background(), session.ID, DraftPatch{CheckOut: &checkOut})
	require.NoError(t, err)
	assert.Equal(t, model.SessionCollecting, updated.Status)
	assert.Empty(t, updated.Error)
}

func TestEngine_Submit_requiresCompleteDraft(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())
	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)

	_, err = e.Submit(context.Background(), session.ID)
	require.Error(t, err)
	env := err.(*model.ErrorEnvelope)
	assert.Equal(t, model.ErrValidationError, env.Code)
	assert.Len(t, env.Details, 3)
}

func TestEngine_Submit_cardProducesInvoice(t *testing.T) {
	client := defaultBackend()
	e, _ := newTestEngine(t, client)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)
	completeDraft(t, e, session.ID)

	svc := "s1"
	_, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{ToggleService: &svc})
	require.NoError(t, err)

	submitted, err := e.Submit(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SessionInvoiceReady, submitted.Status)
	assert.Equal(t, "res-1", submitted.ReservationID)
	require.NotNil(t, submitted.Invoice)
	assert.True(t, strings.HasPrefix(submitted.Invoice.Invoice.Number, "FAC-"))
	assert.Equal(t, fixed.Format(time.RFC3339), submitted.Invoice.Invoice.PaymentDate)
	assert.Equal(t, 3, submitted.Invoice.Nights)
	assert.Equal(t, float64(325), submitted.Invoice.Invoice.Total)

	// The wire payload embeds the invoice; the payment method lives only there.
	payload := client.payload
	assert.Equal(t, "c1", payload["idCliente"])
	assert.Equal(t, "2026-03-10T00:00:00Z", payload["fechaEntrada"])
	assert.Equal(t, model.ReservationConfirmed, payload["estadoReserva"])
	_, hasTopLevelMethod := payload["metodoPago"]
	assert.False(t, hasTopLevelMethod)
	method, ok := record.Get(payload, "factura.metodoPago")
	require.True(t, ok)
	assert.Equal(t, model.PaymentCard, method)
	total, _ := record.Get(payload, "factura.montoTotal")
	assert.Equal(t, float64(325), total)
}

func TestEngine_Submit_cashClosesAfterDelay(t *testing.T) {
	client := defaultBackend()
	e, store := newTestEngine(t, client)

	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)
	completeDraft(t, e, session.ID)

	cash := model.PaymentCash
	_, err = e.UpdateDraft(context.Background(), session.ID, DraftPatch{PaymentMethod: &cash})
	require.NoError(t, err)

	submitted, err := e.Submit(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionSubmitting, submitted.Status)
	assert.Equal(t, "Reservation created successfully", submitted.Message)
	assert.Nil(t, submitted.Invoice)

	// The cash payment date is the check-in date, not the submission time.
	date, ok := record.Get(client.payload, "factura.fechaPago")
	require.True(t, ok)
	assert.Equal(t, "2026-03-10T00:00:00Z", date)

	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), session.ID)
		return err == nil && got.Status == model.SessionClosed
	}, time.Second, 5*time.Millisecond, "cash session should close once the message delay elapses")
}

func TestEngine_Submit_rejectsWhileNotActive(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())
	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)
	completeDraft(t, e, session.ID)

	submitted, err := e.Submit(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionInvoiceReady, submitted.Status)

	_, err = e.Submit(context.Background(), session.ID)
	require.Error(t, err)
	assert.Equal(t, model.ErrSessionNotActive, err.(*model.ErrorEnvelope).Code)
}

func TestEngine_DismissInvoice(t *testing.T) {
	e, _ := newTestEngine(t, defaultBackend())
	session, err := e.Start(context.Background(), "h1", "c1")
	require.NoError(t, err)
	completeDraft(t, e, session.ID)

	_, err = e.DismissInvoice(context.Background(), session.ID)
	require.Error(t, err, "nothing to dismiss before submission")

	_, err = e.Submit(context.Background(), session.ID)
	require.NoError(t, err)

	closed, err := e.DismissInvoice(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, closed.Status)
	assert.Nil(t, closed.Invoice)
}
