package crud

import (
	"context"

	"github.com/lunahq/posada/internal/backend"
	"github.com/lunahq/posada/internal/record"
	"github.com/lunahq/posada/model"
)

// Backend field names the hotel and room hooks depend on. These belong to the
// backend's wire contract and never change with the schema files.
const (
	fieldHotelID   = "idHotel"
	fieldRoomState = "estado"
	fieldRoomCount = "numeroHabitaciones"

	hotelsEndpoint = "/hoteles"
	roomsEndpoint  = "/habitaciones"
)

// SideEffect is the outcome of one best-effort follow-up write attached to a
// primary operation. A failed side effect never fails the primary operation;
// it is reported so the caller can log and surface it.
type SideEffect struct {
	Name string
	Err  error
}

// Hooks lets a collection customize the controller's write path. All methods
// must tolerate partial inputs; rec may be nil when the record was not in the
// loaded items.
type Hooks interface {
	// PrepareCreate adjusts the payload before a create is sent.
	PrepareCreate(payload model.Record)

	// AfterCreate runs follow-up writes once a create succeeded.
	AfterCreate(ctx context.Context, payload model.Record) []SideEffect

	// Remove may take over removal entirely. handled=false with a nil error
	// falls through to a plain backend delete.
	Remove(ctx context.Context, id string, rec model.Record) (handled bool, effects []SideEffect, err error)
}

type noHooks struct{}

func (noHooks) PrepareCreate(model.Record)                            {}
func (noHooks) AfterCreate(context.Context, model.Record) []SideEffect { return nil }
func (noHooks) Remove(context.Context, string, model.Record) (bool, []SideEffect, error) {
	return false, nil, nil
}

// hotelHooks forces the room counter of a newly created hotel to zero; rooms
// are counted as they are registered, never trusted from the form.
type hotelHooks struct {
	noHooks
}

func (hotelHooks) PrepareCreate(payload model.Record) {
	record.Set(payload, fieldRoomCount, 0)
}

// roomHooks keeps the owning hotel's room counter in step with room
// registrations, and replaces room deletion with a soft state change so the
// reservation history behind a room survives.
type roomHooks struct {
	client backend.Client
}

func (roomHooks) PrepareCreate(model.Record) {}

func (h roomHooks) AfterCreate(ctx context.Context, payload model.Record) []SideEffect {
	hotelID, ok := stringValue(payload, fieldHotelID)
	if !ok || hotelID == "" {
		return nil
	}
	err := h.adjustHotelCount(ctx, hotelID, +1)
	return []SideEffect{{Name: "hotel room count increment", Err: err}}
}

func (h roomHooks) Remove(ctx context.Context, id string, rec model.Record) (bool, []SideEffect, error) {
	if rec == nil {
		fetched, err := h.client.Retrieve(ctx, roomsEndpoint, id)
		if err != nil {
			return true, nil, err
		}
		rec = fetched
	}

	updated := make(model.Record, len(rec))
	for k, v := range rec {
		updated[k] = v
	}
	updated[fieldRoomState] = model.RoomStatusInactive

	if _, err := h.client.Update(ctx, roomsEndpoint, id, updated); err != nil {
		return true, nil, err
	}

	var effects []SideEffect
	if hotelID, ok := stringValue(rec, fieldHotelID); ok && hotelID != "" {
		err := h.adjustHotelCount(ctx, hotelID, -1)
		effects = append(effects, SideEffect{Name: "hotel room count decrement", Err: err})
	}
	return true, effects, nil
}

// adjustHotelCount applies a delta to the hotel's stored room counter. The
// counter never goes below zero; a decrement against zero is a no-op.
func (h roomHooks) adjustHotelCount(ctx context.Context, hotelID string, delta int) error {
	hotel, err := h.client.Retrieve(ctx, hotelsEndpoint, hotelID)
	if err != nil {
		return err
	}

	current := intValue(hotel, fieldRoomCount)
	next := current + delta
	if next < 0 {
		next = 0
	}
	if next == current {
		return nil
	}

	updated := make(model.Record, len(hotel))
	for k, v := range hotel {
		updated[k] = v
	}
	updated[fieldRoomCount] = next

	_, err = h.client.Update(ctx, hotelsEndpoint, hotelID, updated)
	return err
}

func stringValue(rec model.Record, path string) (string, bool) {
	v, ok := record.Get(rec, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intValue(rec model.Record, path string) int {
	v, ok := record.Get(rec, path)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
