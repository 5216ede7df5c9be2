package form

import (
	"github.com/lunahq/posada/internal/record"
	"github.com/lunahq/posada/model"
)

// Engine builds form state from records and submit payloads from form state
// for one resource schema. It carries no mutable state of its own.
type Engine struct {
	schema *model.ResourceSchema
}

// NewEngine creates an engine bound to a schema.
func NewEngine(schema *model.ResourceSchema) *Engine {
	return &Engine{schema: schema}
}

// EmptyState returns a blank form state with one entry per schema field.
func (e *Engine) EmptyState() model.FormState {
	state := make(model.FormState, len(e.schema.Fields))
	for _, field := range e.schema.Fields {
		state[field.Name] = ""
	}
	return state
}

// BuildState populates form state from an existing record, encoding each
// field's stored value into its editable text form. Fields the record lacks
// become empty strings.
func (e *Engine) BuildState(rec model.Record) model.FormState {
	state := make(model.FormState, len(e.schema.Fields))
	for _, field := range e.schema.Fields {
		value, _ := record.Get(rec, field.Name)
		state[field.Name] = Encode(field.Kind, value)
	}
	return state
}

// ApplyInput writes one edited value into a copy of the state, sanitizing it
// per the field's kind. Input for a name the schema does not declare is
// rejected.
func (e *Engine) ApplyInput(state model.FormState, name, value string) (model.FormState, error) {
	field, ok := e.field(name)
	if !ok {
		return nil, model.NewBadRequestError("unknown field: " + name)
	}
	next := state.Clone()
	next[field.Name] = SanitizeInput(field.Kind, value)
	return next, nil
}

// BuildPayload decodes the whole form state into a nested submit payload.
// Empty fields are omitted rather than sent as empty strings, so partial
// updates never blank out attributes the user left untouched. Required fields
// that are empty and values that fail to decode are reported as field errors;
// a non-empty error list means no payload was produced.
func (e *Engine) BuildPayload(state model.FormState) (model.Record, []model.FieldError) {
	payload := record.NewPayload()
	var fieldErrs []model.FieldError

	for _, field := range e.schema.Fields {
		text := state[field.Name]
		value, present, err := Decode(field.Kind, text)
		if err != nil {
			fieldErrs = append(fieldErrs, model.FieldError{
				Field:   field.Name,
				Code:    "invalid_value",
				Message: err.Error(),
			})
			continue
		}
		if !present {
			if field.Required {
				fieldErrs = append(fieldErrs, model.FieldError{
					Field:   field.Name,
					Code:    "required",
					Message: field.Label + " is required",
				})
			}
			continue
		}
		payload.Set(field.Name, value)
	}

	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}
	return payload.Record(), nil
}

func (e *Engine) field(name string) (model.FieldSchema, bool) {
	for _, f := range e.schema.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.FieldSchema{}, false
}
