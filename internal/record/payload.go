package record

import "github.com/lunahq/posada/model"

// Payload accumulates a nested request body from flat dotted field names.
// All payload construction goes through this builder; the underlying map is
// only handed out at the client boundary via Record.
type Payload struct {
	data map[string]any
}

// NewPayload creates an empty payload builder.
func NewPayload() *Payload {
	return &Payload{data: make(map[string]any)}
}

// Set writes value at the dotted path, expanding intermediate objects.
func (p *Payload) Set(path string, value any) {
	Set(p.data, path, value)
}

// Value reads back a previously written path.
func (p *Payload) Value(path string) (any, bool) {
	return Get(p.data, path)
}

// Len returns the number of top-level keys written so far.
func (p *Payload) Len() int {
	return len(p.data)
}

// Record materializes the accumulated payload. The builder must not be
// written to after this call.
func (p *Payload) Record() model.Record {
	return model.Record(p.data)
}
