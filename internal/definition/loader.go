// Package definition loads resource schemas from YAML files and serves them
// through an atomically swappable registry. Schemas are declarative: they name
// the backend collection, the form fields, and the table columns, and the rest
// of the console derives all behavior from them.
package definition

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/lunahq/posada/model"
	"gopkg.in/yaml.v3"
)

// Loader reads resource schema definitions from one or more directories.
type Loader struct {
	directories []string
	logger      *zap.Logger
}

// NewLoader creates a Loader over the given directories.
func NewLoader(directories []string, logger *zap.Logger) *Loader {
	return &Loader{directories: directories, logger: logger}
}

// Load walks every configured directory, parses each .yaml/.yml file into a
// ResourceSchema, validates it, and returns the full set. A single invalid
// file fails the whole load; partial registries are never served.
func (l *Loader) Load() ([]*model.ResourceSchema, error) {
	var schemas []*model.ResourceSchema

	for _, dir := range l.directories {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("definition: directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("definition: %s is not a directory", dir)
		}

		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isYAMLFile(path) {
				return nil
			}

			schema, err := l.loadFile(path)
			if err != nil {
				return err
			}
			schemas = append(schemas, schema)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := validateSet(schemas); err != nil {
		return nil, err
	}

	l.logger.Info("definition: schemas loaded",
		zap.Int("count", len(schemas)),
		zap.Strings("directories", l.directories),
	)
	return schemas, nil
}

func (l *Loader) loadFile(path string) (*model.ResourceSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: reading %s: %w", path, err)
	}

	var schema model.ResourceSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("definition: parsing %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	schema.Checksum = hex.EncodeToString(sum[:])
	schema.SourceFile = path

	if err := Validate(&schema); err != nil {
		return nil, fmt.Errorf("definition: %s: %w", path, err)
	}
	return &schema, nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
