// Package table projects backend records into display rows according to the
// column list in a resource schema.
package table

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lunahq/posada/internal/record"
	"github.com/lunahq/posada/model"
)

// EmptyCell is what a missing or null value renders as.
const EmptyCell = "—"

// Row is one rendered table row: the record identifier plus one display
// string per column, in column order.
type Row struct {
	ID    string   `json:"id"`
	Cells []string `json:"cells"`
}

// Rows renders every record against the schema's columns. Records keep their
// backend order.
func Rows(schema *model.ResourceSchema, records []model.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{
			ID:    rec.ID(),
			Cells: make([]string, 0, len(schema.Columns)),
		}
		for _, col := range schema.Columns {
			value, ok := record.Get(rec, col.Path)
			if !ok {
				row.Cells = append(row.Cells, EmptyCell)
				continue
			}
			row.Cells = append(row.Cells, RenderCell(value))
		}
		rows = append(rows, row)
	}
	return rows
}

// RenderCell converts an arbitrary record value into a display string.
// Arrays are comma-joined element renderings, nested objects fall back to
// their compact JSON form so no data is silently dropped.
func RenderCell(value any) string {
	switch v := value.(type) {
	case nil:
		return EmptyCell
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, RenderCell(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return EmptyCell
		}
		return string(b)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return EmptyCell
	}
	return string(b)
}
