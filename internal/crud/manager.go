package crud

import (
	"strings"

	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/backend"
	"github.com/lunahq/posada/internal/definition"
	"github.com/lunahq/posada/model"
)

// Manager owns one controller per registered collection and routes requests
// to them by collection name.
type Manager struct {
	controllers map[string]*Controller
	ordered     []*Controller
}

// NewManager builds a controller for every schema in the registry, attaching
// the collection hooks where the backend contract requires them.
func NewManager(registry *definition.Registry, client backend.Client, logger *zap.Logger, metrics OpRecorder) *Manager {
	schemas := registry.All()
	m := &Manager{
		controllers: make(map[string]*Controller, len(schemas)),
		ordered:     make([]*Controller, 0, len(schemas)),
	}
	for _, schema := range schemas {
		ctrl := NewController(schema, client, hooksFor(schema, client), logger, metrics)
		m.controllers[collectionOf(schema)] = ctrl
		m.ordered = append(m.ordered, ctrl)
	}
	return m
}

// Controller returns the controller registered under the collection name.
func (m *Manager) Controller(collection string) (*Controller, bool) {
	ctrl, ok := m.controllers[collection]
	return ctrl, ok
}

// Controllers returns every controller, ordered by schema title.
func (m *Manager) Controllers() []*Controller {
	return m.ordered
}

// hooksFor selects write-path hooks by backend endpoint. Hotels and rooms
// carry coupled behavior; every other collection gets the plain path.
func hooksFor(schema *model.ResourceSchema, client backend.Client) Hooks {
	switch schema.Endpoint {
	case hotelsEndpoint:
		return hotelHooks{}
	case roomsEndpoint:
		return roomHooks{client: client}
	}
	return noHooks{}
}

func collectionOf(schema *model.ResourceSchema) string {
	return strings.TrimPrefix(schema.Endpoint, "/")
}
