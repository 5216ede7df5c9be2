package model

// IDField is the identifier attribute every backend record carries.
const IDField = "_id"

// Record is one item of a backend collection. Its shape is opaque beyond what
// the active resource schema declares; values may nest arbitrarily.
type Record map[string]any

// ID returns the record's identifier attribute, or "" if absent.
func (r Record) ID() string {
	id, _ := r[IDField].(string)
	return id
}

// FormState maps field names to their display-formatted input values. It is
// owned exclusively by one form engine instance and never shared.
type FormState map[string]string

// Clone returns an independent copy of the form state.
func (s FormState) Clone() FormState {
	out := make(FormState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
