package model

// FieldKind is the closed set of editable field types a resource schema may
// declare. The form codec switches exhaustively over these values.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindNumber   FieldKind = "number"
	KindInt      FieldKind = "int"
	KindArray    FieldKind = "array"
	KindDate     FieldKind = "date"
	KindSelect   FieldKind = "select"
	KindTextarea FieldKind = "textarea"
)

// KnownFieldKinds lists every valid FieldKind, in declaration order.
var KnownFieldKinds = []FieldKind{
	KindText, KindNumber, KindInt, KindArray, KindDate, KindSelect, KindTextarea,
}

// Known reports whether k is one of the declared field kinds.
func (k FieldKind) Known() bool {
	switch k {
	case KindText, KindNumber, KindInt, KindArray, KindDate, KindSelect, KindTextarea:
		return true
	}
	return false
}

// Numeric reports whether input for this kind should be restricted to digits
// and a decimal point before being stored in form state.
func (k FieldKind) Numeric() bool {
	return k == KindNumber || k == KindInt
}

// OptionSchema is a value/label pair for select fields.
type OptionSchema struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// FieldSchema declares one form-editable attribute of a resource. Name is a
// dot-path into the record; nested payload shapes are produced from flat
// dotted names at submit time.
type FieldSchema struct {
	Name     string         `yaml:"name"     json:"name"`
	Label    string         `yaml:"label"    json:"label"`
	Kind     FieldKind      `yaml:"type"     json:"type"`
	Required bool           `yaml:"required" json:"required,omitempty"`
	Options  []OptionSchema `yaml:"options"  json:"options,omitempty"`
}

// ColumnSchema declares one read-only table projection. Columns are
// independent of fields; a resource's table view need not mirror its form.
type ColumnSchema struct {
	Path  string `yaml:"path"  json:"path"`
	Label string `yaml:"label" json:"label"`
}

// ResourceSchema is the immutable per-collection bundle that drives one CRUD
// controller. Defined in a YAML definition file, never mutated at runtime.
type ResourceSchema struct {
	Title       string         `yaml:"title"       json:"title"`
	Endpoint    string         `yaml:"endpoint"    json:"endpoint"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Fields      []FieldSchema  `yaml:"fields"      json:"fields"`
	Columns     []ColumnSchema `yaml:"columns"     json:"columns"`

	// Checksum and SourceFile are computed at load time, not part of the YAML.
	Checksum   string `yaml:"-" json:"-"`
	SourceFile string `yaml:"-" json:"-"`
}
