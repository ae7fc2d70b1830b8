package installer

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Tables is the mapped-services table: NetworkService -> ServiceType ->
// handle id -> Handle. Scenario termination scans every level for handles
// matching a popped scenario's local_service_handles and removes them
// atomically.
type Tables struct {
	mu    sync.Mutex
	table map[NetworkService]map[ServiceType]map[string]*Handle
}

// NewTables returns an empty mapped-services table, pre-seeded with every
// known (NetworkService, ServiceType) bucket.
func NewTables() *Tables {
	t := &Tables{table: make(map[NetworkService]map[ServiceType]map[string]*Handle)}
	t.table[ServiceIPv4] = map[ServiceType]map[string]*Handle{
		TypeICMP: {}, TypeUDP: {}, TypeTCP: {}, TypeAny: {},
	}
	t.table[ServiceMPLS] = map[ServiceType]map[string]*Handle{
		TypeOneWay: {}, TypeTwoWay: {},
	}
	return t
}

// Register stores h under (service, kind).
func (t *Tables) Register(service NetworkService, kind ServiceType, h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table[service][kind][h.ID] = h
}

// RemoveByHandleIDs scans every (service, kind) bucket, removing and
// releasing any handle whose id is in ids. Errors from individual releases
// are aggregated, not short-circuited, so one failing release does not
// block the rest.
func (t *Tables) RemoveByHandleIDs(ctx context.Context, ids []string) error {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	t.mu.Lock()
	var toRelease []*Handle
	for _, byKind := range t.table {
		for _, byHandle := range byKind {
			for id, h := range byHandle {
				if _, match := want[id]; match {
					toRelease = append(toRelease, h)
					delete(byHandle, id)
				}
			}
		}
	}
	t.mu.Unlock()

	var result *multierror.Error
	for _, h := range toRelease {
		if err := h.Release(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
