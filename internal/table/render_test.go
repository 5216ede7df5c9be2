package table

import (
	"testing"

	"github.com/lunahq/posada/model"
)

func TestRenderCell(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, EmptyCell},
		{"string", "Lima", "Lima"},
		{"number", float64(150.5), "150.5"},
		{"whole number", float64(4), "4"},
		{"bool", true, "true"},
		{"array", []any{"wifi", "spa"}, "wifi, spa"},
		{"array of numbers", []any{float64(1), float64(2)}, "1, 2"},
		{"object", map[string]any{"likes": float64(3)}, `{"likes":3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderCell(tc.value); got != tc.want {
				t.Errorf("RenderCell(%v) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestRows(t *testing.T) {
	schema := &model.ResourceSchema{
		Columns: []model.ColumnSchema{
			{Path: "nombreHotel", Label: "Hotel"},
			{Path: "pais.nombre", Label: "País"},
			{Path: "calificacion", Label: "Calificación"},
		},
	}
	records := []model.Record{
		{
			"_id":          "h1",
			"nombreHotel":  "Hotel Azul",
			"pais":         map[string]any{"nombre": "Perú"},
			"calificacion": float64(4.5),
		},
		{
			"_id":         "h2",
			"nombreHotel": "Hotel Verde",
		},
	}

	rows := Rows(schema, records)
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}

	if rows[0].ID != "h1" {
		t.Errorf("row 0 id = %q", rows[0].ID)
	}
	want := []string{"Hotel Azul", "Perú", "4.5"}
	for i, cell := range want {
		if rows[0].Cells[i] != cell {
			t.Errorf("row 0 cell %d = %q, want %q", i, rows[0].Cells[i], cell)
		}
	}

	// Missing paths render as the empty cell marker.
	if rows[1].Cells[1] != EmptyCell || rows[1].Cells[2] != EmptyCell {
		t.Errorf("row 1 cells = %v", rows[1].Cells)
	}
}
