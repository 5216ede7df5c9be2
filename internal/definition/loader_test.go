package definition

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

const hotelsYAML = `title: Hoteles
endpoint: /hoteles
fields:
  - name: nombreHotel
    label: Nombre
    type: text
    required: true
  - name: calificacion
    label: Calificación
    type: number
columns:
  - path: nombreHotel
    label: Hotel
`

const roomsYAML = `title: Habitaciones
endpoint: /habitaciones
fields:
  - name: precioNoche
    label: Precio por noche
    type: number
    required: true
  - name: estado
    label: Estado
    type: select
    options:
      - value: Disponible
        label: Disponible
      - value: Inactivo
        label: Inactivo
columns:
  - path: precioNoche
    label: Precio
`

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "hoteles.yaml", hotelsYAML)
	writeDefinition(t, dir, "habitaciones.yml", roomsYAML)
	writeDefinition(t, dir, "notes.txt", "ignored")

	loader := NewLoader([]string{dir}, zap.NewNop())
	schemas, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(schemas) != 2 {
		t.Fatalf("loaded %d schemas, want 2", len(schemas))
	}

	for _, s := range schemas {
		if s.Checksum == "" {
			t.Errorf("schema %s has no checksum", s.Endpoint)
		}
		if s.SourceFile == "" {
			t.Errorf("schema %s has no source file", s.Endpoint)
		}
	}
}

func TestLoader_Load_invalidSchemaFailsWholeLoad(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "hoteles.yaml", hotelsYAML)
	writeDefinition(t, dir, "broken.yaml", "title: Broken\nfields: []\n")

	loader := NewLoader([]string{dir}, zap.NewNop())
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected error for invalid definition")
	}
}

func TestLoader_Load_duplicateEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.yaml", hotelsYAML)
	writeDefinition(t, dir, "b.yaml", hotelsYAML)

	loader := NewLoader([]string{dir}, zap.NewNop())
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected error for duplicate endpoint")
	}
}

func TestLoader_Load_missingDirectory(t *testing.T) {
	loader := NewLoader([]string{filepath.Join(t.TempDir(), "nope")}, zap.NewNop())
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
