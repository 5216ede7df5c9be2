package definition

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/lunahq/posada/model"
)

// Registry holds the active schema set behind an atomic pointer so lookups
// never block and a reload swaps the whole set at once.
type Registry struct {
	snapshot atomic.Pointer[registrySnapshot]
}

type registrySnapshot struct {
	byCollection map[string]*model.ResourceSchema
	ordered      []*model.ResourceSchema
}

// NewRegistry creates a registry populated with the given schemas.
func NewRegistry(schemas []*model.ResourceSchema) *Registry {
	r := &Registry{}
	r.Replace(schemas)
	return r
}

// Replace swaps the full schema set. Readers holding the previous snapshot
// keep seeing a consistent set until their lookup completes.
func (r *Registry) Replace(schemas []*model.ResourceSchema) {
	snap := &registrySnapshot{
		byCollection: make(map[string]*model.ResourceSchema, len(schemas)),
		ordered:      make([]*model.ResourceSchema, len(schemas)),
	}
	copy(snap.ordered, schemas)
	sort.Slice(snap.ordered, func(i, j int) bool {
		return snap.ordered[i].Title < snap.ordered[j].Title
	})
	for _, s := range schemas {
		snap.byCollection[CollectionName(s.Endpoint)] = s
	}
	r.snapshot.Store(snap)
}

// Get returns the schema registered under the given collection name.
func (r *Registry) Get(collection string) (*model.ResourceSchema, bool) {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil, false
	}
	s, ok := snap.byCollection[collection]
	return s, ok
}

// All returns every registered schema ordered by title.
func (r *Registry) All() []*model.ResourceSchema {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := make([]*model.ResourceSchema, len(snap.ordered))
	copy(out, snap.ordered)
	return out
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	snap := r.snapshot.Load()
	if snap == nil {
		return 0
	}
	return len(snap.ordered)
}

// CollectionName derives the routing key for a schema from its endpoint:
// "/habitaciones" becomes "habitaciones".
func CollectionName(endpoint string) string {
	return strings.TrimPrefix(endpoint, "/")
}
