package reservation

import (
	"time"

	"github.com/lunahq/posada/internal/record"
	"github.com/lunahq/posada/model"
)

// Backend field names used by pricing.
const (
	fieldNightPrice   = "precioNoche"
	fieldServicePrice = "precioAdicional"
)

const dateLayout = "2006-01-02"

// Quote is the priced view of a draft.
type Quote struct {
	Nights        float64 `json:"nights"`
	RoomSubtotal  float64 `json:"room_subtotal"`
	ServicesTotal float64 `json:"services_total"`
	Total         float64 `json:"total"`
}

// Nights returns the number of billable nights between two dates, counted as
// whole calendar days so a time-of-day component never produces a fractional
// night. Unset or unparseable dates price as a single night, and the count
// never drops below one, so an inverted range quotes the minimum stay instead
// of a negative amount.
func Nights(checkIn, checkOut string) float64 {
	in, errIn := parseDate(checkIn)
	out, errOut := parseDate(checkOut)
	if errIn != nil || errOut != nil {
		return 1
	}
	nights := calendarDay(out).Sub(calendarDay(in)).Hours() / 24
	if nights < 1 {
		return 1
	}
	return nights
}

// calendarDay drops the time-of-day component, keeping only the date.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Price computes the quote for a draft against the loaded rooms and services.
// An unknown room prices everything at zero; service identifiers that match
// no loaded service contribute nothing.
func Price(draft model.ReservationDraft, rooms, services []model.Record) Quote {
	room, ok := findByID(rooms, draft.RoomID)
	if !ok {
		return Quote{}
	}

	nights := Nights(draft.CheckIn, draft.CheckOut)
	roomSubtotal := numberValue(room, fieldNightPrice) * nights

	servicesTotal := 0.0
	for _, id := range draft.ServiceIDs {
		if svc, ok := findByID(services, id); ok {
			servicesTotal += numberValue(svc, fieldServicePrice)
		}
	}

	return Quote{
		Nights:        nights,
		RoomSubtotal:  roomSubtotal,
		ServicesTotal: servicesTotal,
		Total:         roomSubtotal + servicesTotal,
	}
}

func findByID(records []model.Record, id string) (model.Record, bool) {
	if id == "" {
		return nil, false
	}
	for _, rec := range records {
		if rec.ID() == id {
			return rec, true
		}
	}
	return nil, false
}

func numberValue(rec model.Record, path string) float64 {
	v, ok := record.Get(rec, path)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
