package definition

import (
	"fmt"
	"strings"

	"github.com/lunahq/posada/model"
)

// Validate checks a single resource schema for structural problems. Called at
// load time so a bad definition file is rejected before it can drive a
// controller.
func Validate(schema *model.ResourceSchema) error {
	var errs []string

	if schema.Title == "" {
		errs = append(errs, "title is required")
	}
	if schema.Endpoint == "" {
		errs = append(errs, "endpoint is required")
	} else if !strings.HasPrefix(schema.Endpoint, "/") {
		errs = append(errs, "endpoint must start with /")
	}
	if len(schema.Fields) == 0 {
		errs = append(errs, "at least one field is required")
	}

	seen := make(map[string]bool, len(schema.Fields))
	for i, field := range schema.Fields {
		prefix := fmt.Sprintf("fields[%d]", i)
		if field.Name == "" {
			errs = append(errs, prefix+": name is required")
			continue
		}
		if field.Label == "" {
			errs = append(errs, fmt.Sprintf("%s (%s): label is required", prefix, field.Name))
		}
		if !field.Kind.Known() {
			errs = append(errs, fmt.Sprintf("%s (%s): unknown type %q", prefix, field.Name, field.Kind))
		}
		if field.Kind == model.KindSelect && len(field.Options) == 0 {
			errs = append(errs, fmt.Sprintf("%s (%s): select fields require options", prefix, field.Name))
		}
		if seen[field.Name] {
			errs = append(errs, fmt.Sprintf("%s (%s): duplicate field name", prefix, field.Name))
		}
		seen[field.Name] = true
	}

	// Two field names where one is a dotted prefix of the other would fight
	// over the same payload slot: writing "a.b" turns the value at "a" into a
	// nested object and discards it.
	for i, a := range schema.Fields {
		for _, b := range schema.Fields[i+1:] {
			if a.Name == b.Name {
				continue
			}
			if pathOverlaps(a.Name, b.Name) {
				errs = append(errs, fmt.Sprintf("field paths %q and %q overlap", a.Name, b.Name))
			}
		}
	}

	for i, col := range schema.Columns {
		if col.Path == "" {
			errs = append(errs, fmt.Sprintf("columns[%d]: path is required", i))
		}
		if col.Label == "" {
			errs = append(errs, fmt.Sprintf("columns[%d]: label is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// pathOverlaps reports whether one dotted path is a segment-wise prefix of
// the other. "a" overlaps "a.b" but not "ab".
func pathOverlaps(a, b string) bool {
	return strings.HasPrefix(b, a+".") || strings.HasPrefix(a, b+".")
}

// validateSet checks constraints across the whole schema set.
func validateSet(schemas []*model.ResourceSchema) error {
	endpoints := make(map[string]string, len(schemas))
	for _, s := range schemas {
		if prev, ok := endpoints[s.Endpoint]; ok {
			return fmt.Errorf("definition: endpoint %s declared by both %s and %s", s.Endpoint, prev, s.SourceFile)
		}
		endpoints[s.Endpoint] = s.SourceFile
	}
	return nil
}
