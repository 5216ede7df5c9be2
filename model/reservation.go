package model

import "time"

// Wire values shared with the backend collections. These are part of the
// backend contract and must be preserved exactly.
const (
	RoomStatusInactive = "Inactivo"

	PaymentCard = "Tarjeta"
	PaymentCash = "Efectivo"

	ReservationPending   = "Pendiente"
	ReservationConfirmed = "Confirmada"
)

// Reservation session lifecycle states.
const (
	SessionCollecting   = "collecting_input"
	SessionSubmitting   = "submitting"
	SessionInvoiceReady = "invoice_ready"
	SessionClosed       = "closed"
	SessionFailed       = "failed"
)

// DeriveReservationStatus returns the reservation status implied by a payment
// method: cash leaves the reservation pending until payment is confirmed,
// everything else confirms immediately.
func DeriveReservationStatus(paymentMethod string) string {
	if paymentMethod == PaymentCash {
		return ReservationPending
	}
	return ReservationConfirmed
}

// ReservationDraft is the working state of a reservation in progress. The
// total is never stored on the draft: it is recomputed from current draft
// state on every quote and at submit time.
type ReservationDraft struct {
	RoomID        string   `json:"idHabitacion"`
	CheckIn       string   `json:"fechaEntrada"`
	CheckOut      string   `json:"fechaSalida"`
	PaymentMethod string   `json:"metodoPago"`
	Status        string   `json:"estadoReserva"`
	ServiceIDs    []string `json:"servicios"`
}

// HasService reports whether the draft already includes the service.
func (d *ReservationDraft) HasService(id string) bool {
	for _, s := range d.ServiceIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Complete reports whether the submission gate is satisfied: room and both
// dates are set. Date ordering is deliberately not validated here.
func (d *ReservationDraft) Complete() bool {
	return d.RoomID != "" && d.CheckIn != "" && d.CheckOut != ""
}

// Invoice is the billing sub-object embedded in a reservation payload.
type Invoice struct {
	Number        string  `json:"numeroFactura"`
	PaymentDate   string  `json:"fechaPago"`
	Total         float64 `json:"montoTotal"`
	PaymentMethod string  `json:"metodoPago"`
}

// InvoiceView is the display snapshot shown after a successful card-paid
// reservation. It is composed at submit time and discarded once dismissed;
// only the backend persists the embedded invoice.
type InvoiceView struct {
	Hotel         Record   `json:"hotel"`
	Room          Record   `json:"habitacion"`
	Services      []Record `json:"serviciosSeleccionados"`
	ReservationID string   `json:"reservaId"`
	Invoice       Invoice  `json:"factura"`
	CheckIn       string   `json:"fechaEntrada"`
	CheckOut      string   `json:"fechaSalida"`
	Nights        int      `json:"noches"`
}

// ReservationSession is one reservation workflow instance. Sessions are
// persisted in a session store and mutated under optimistic locking.
type ReservationSession struct {
	ID       string `json:"id"`
	HotelID  string `json:"hotel_id"`
	ClientID string `json:"client_id"`
	Status   string `json:"status"`

	Hotel    Record   `json:"hotel,omitempty"`
	Rooms    []Record `json:"habitaciones"`
	Services []Record `json:"servicios"`

	Draft ReservationDraft `json:"draft"`

	// LoadError carries a form-level message when loading rooms or services
	// failed; the session stays usable for whatever did load.
	LoadError string `json:"load_error,omitempty"`

	Message       string       `json:"message,omitempty"`
	Error         string       `json:"error,omitempty"`
	Invoice       *InvoiceView `json:"invoice,omitempty"`
	ReservationID string       `json:"reservation_id,omitempty"`

	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the session still accepts draft mutations.
func (s *ReservationSession) Active() bool {
	return s.Status == SessionCollecting || s.Status == SessionFailed
}
