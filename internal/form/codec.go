// Package form converts between backend record values and flat string form
// state, and assembles nested submit payloads from that state. Conversion is
// driven entirely by the field kind declared in the resource schema.
package form

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lunahq/posada/model"
)

const dateLayout = "2006-01-02"

// arraySeparator joins and splits multi-value fields in their text
// representation.
const arraySeparator = ","

// Encode turns a record value into the string shown in a form input. A nil or
// missing value encodes to the empty string. The mapping is loss-tolerant:
// whatever the backend stored must become something editable.
func Encode(kind model.FieldKind, value any) string {
	if value == nil {
		return ""
	}

	switch kind {
	case model.KindArray:
		return encodeArray(value)
	case model.KindDate:
		return encodeDate(value)
	case model.KindNumber, model.KindInt:
		return encodeNumber(value)
	case model.KindText, model.KindSelect, model.KindTextarea:
		return encodeScalar(value)
	}
	return encodeScalar(value)
}

// Decode turns edited form text back into the typed value for the submit
// payload. The boolean is false when the text is empty and the field should be
// omitted from the payload entirely. A non-nil error means the text cannot
// represent a value of this kind.
func Decode(kind model.FieldKind, text string) (any, bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false, nil
	}

	switch kind {
	case model.KindNumber:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, false, fmt.Errorf("not a valid number")
		}
		return v, true, nil
	case model.KindInt:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("not a valid whole number")
		}
		return v, true, nil
	case model.KindArray:
		return decodeArray(trimmed), true, nil
	case model.KindDate:
		t, err := parseDate(trimmed)
		if err != nil {
			return nil, false, fmt.Errorf("not a valid date")
		}
		return t.UTC().Format(time.RFC3339), true, nil
	case model.KindText, model.KindSelect, model.KindTextarea:
		return text, true, nil
	}
	return text, true, nil
}

// SanitizeInput filters keystrokes for a field before they reach form state.
// Numeric kinds keep only digits and the decimal point; everything else
// passes through untouched.
func SanitizeInput(kind model.FieldKind, text string) string {
	if !kind.Numeric() {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func encodeArray(value any) string {
	items, ok := value.([]any)
	if !ok {
		if ss, ok := value.([]string); ok {
			return strings.Join(ss, arraySeparator+" ")
		}
		return encodeScalar(value)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, encodeScalar(item))
	}
	return strings.Join(parts, arraySeparator+" ")
}

func encodeDate(value any) string {
	s, ok := value.(string)
	if !ok {
		return encodeScalar(value)
	}
	if t, err := parseDate(s); err == nil {
		return t.Format(dateLayout)
	}
	// A date input cannot display a malformed value; leave it blank.
	return ""
}

func encodeNumber(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	}
	return encodeScalar(value)
}

func encodeScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", value)
}

func decodeArray(text string) []string {
	parts := strings.Split(text, arraySeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
