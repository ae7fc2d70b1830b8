// Package scenario tracks active end-to-end activations: which local
// service handles they own and which adjacent sectors participate.
package scenario

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/engineerr"
)

// Record is the value half of the registry: the local service handles this
// scenario installed, and the adjacent sectors it touches.
type Record struct {
	LocalHandles    []string
	AdjacentSectors map[string]struct{}
}

// Registry enforces at-most-one active scenario per GlobalPathSearchID.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// IsActive reports whether gpsid currently has a record.
func (r *Registry) IsActive(gpsid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[gpsid]
	return ok
}

// SetActive inserts a new record. Colliding with an existing record is a
// programming error: the caller must have gated on the implementation-task
// guard first.
func (r *Registry) SetActive(gpsid string, handles []string, adjacents map[string]struct{}) error {
	if len(handles) == 0 || len(adjacents) == 0 {
		return errors.Wrap(engineerr.ErrInvalidArgument, "scenario: handles and adjacents must both be non-empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[gpsid]; exists {
		return errors.Wrapf(engineerr.ErrInvalidArgument, "scenario: %s already active", gpsid)
	}
	r.records[gpsid] = Record{LocalHandles: handles, AdjacentSectors: adjacents}
	return nil
}

// Get reads the record for gpsid, optionally removing it (pop).
func (r *Registry) Get(gpsid string, pop bool) (Record, error) {
	if pop {
		r.mu.Lock()
		defer r.mu.Unlock()
	} else {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	rec, ok := r.records[gpsid]
	if !ok {
		return Record{}, errors.Wrapf(engineerr.ErrScenarioNotActive, "scenario: %s is not active", gpsid)
	}
	if pop {
		delete(r.records, gpsid)
	}
	return rec, nil
}
