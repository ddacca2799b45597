// Package registry implements the id-mapping registry: client-generated
// temporary ids to server-assigned real ids, with in-place rewriting of
// queued operations when a mapping is registered.
package registry

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// Registry maps temporary ids to real ids. It is process-wide state: the map
// is rebuilt from the store at construction so temp ids referenced by rows
// enqueued before a crash still resolve, and mappings are never deleted
// during a session.
type Registry struct {
	mu       sync.Mutex
	store    types.MappingStore
	clock    types.Clock
	mappings map[string]string
}

// Load builds a registry over the store, rebuilding the in-memory map from
// the persisted mappings.
func Load(store types.MappingStore, clock types.Clock) (*Registry, error) {
	if clock == nil {
		clock = types.RealClock{}
	}
	persisted, err := store.AllMappings()
	if err != nil {
		return nil, fmt.Errorf("loading id mappings: %w", err)
	}

	mappings := make(map[string]string, len(persisted))
	for _, m := range persisted {
		mappings[m.TempID] = m.RealID
	}
	return &Registry{
		store:    store,
		clock:    clock,
		mappings: mappings,
	}, nil
}

// Resolve returns the real id for a known temporary id, or the input
// unchanged. Resolving a real id is a no-op, so callers can resolve
// unconditionally.
func (r *Registry) Resolve(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if real, ok := r.mappings[id]; ok {
		return real
	}
	return id
}

// RegisterAndRewrite stores the mapping and rewrites every still-queued
// operation referencing the temporary id, returning the number of rows
// rewritten. The store commits the mapping and the rewrite in one
// transaction, and the registry mutex orders the map update with concurrent
// Resolve calls: after this returns, no caller can observe the mapping
// without the rewrite.
func (r *Registry) RegisterAndRewrite(tempID, realID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.mappings[tempID]; ok {
		if existing == realID {
			return 0, nil
		}
		return 0, fmt.Errorf("mapping %s already registered to %s", tempID, existing)
	}

	rewritten, err := r.store.RegisterAndRewrite(types.IdMapping{
		TempID:    tempID,
		RealID:    realID,
		CreatedAt: r.clock.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("registering mapping %s: %w", tempID, err)
	}

	r.mappings[tempID] = realID
	return rewritten, nil
}

// Len returns the number of known mappings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mappings)
}
