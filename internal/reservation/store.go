// Package reservation implements the reservation workflow: a session per
// booking attempt that collects draft input, prices it, submits it to the
// backend, and produces an invoice view for card payments.
package reservation

import (
	"context"
	"time"

	"github.com/lunahq/posada/model"
)

// Store persists reservation sessions. Update uses optimistic locking: the
// stored version must match the session's version, and a successful update
// increments it.
type Store interface {
	Create(ctx context.Context, session *model.ReservationSession) error
	Get(ctx context.Context, id string) (*model.ReservationSession, error)
	Update(ctx context.Context, session *model.ReservationSession) error
	Delete(ctx context.Context, id string) error

	// PurgeExpired removes sessions whose expiry is before now and returns how
	// many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)

	// Ping reports whether the store is reachable, for readiness checks.
	Ping(ctx context.Context) error

	Close()
}

// cloneSession returns a deep enough copy that callers can mutate the result
// without aliasing store state.
func cloneSession(s *model.ReservationSession) *model.ReservationSession {
	out := *s
	out.Rooms = append([]model.Record(nil), s.Rooms...)
	out.Services = append([]model.Record(nil), s.Services...)
	out.Draft.ServiceIDs = append([]string(nil), s.Draft.ServiceIDs...)
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		out.ExpiresAt = &t
	}
	if s.Invoice != nil {
		inv := *s.Invoice
		inv.Services = append([]model.Record(nil), s.Invoice.Services...)
		out.Invoice = &inv
	}
	return &out
}
