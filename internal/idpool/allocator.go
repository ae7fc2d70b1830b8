// Package idpool implements the cookie and MPLS-label allocators: a
// monotonic high-water counter plus a recycle pool, compacted on free so a
// long-running controller does not leak numeric space.
package idpool

import (
	"context"
	"sort"
	"sync"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/engineerr"
)

// Allocator hands out ids in (floor, ceiling], recycling freed ones.
type Allocator struct {
	mu      sync.Mutex
	floor   uint64
	ceiling uint64
	counter uint64
	pool    map[uint64]struct{}
}

// NewCookieAllocator returns the cookie allocator, range (0, 2^64-1].
func NewCookieAllocator() *Allocator {
	return newAllocator(0, ^uint64(0))
}

// NewMPLSLabelAllocator returns the MPLS label allocator, range (16, 2^20).
func NewMPLSLabelAllocator() *Allocator {
	return newAllocator(16, (1<<20)-1)
}

func newAllocator(floor, ceiling uint64) *Allocator {
	return &Allocator{
		floor:   floor,
		ceiling: ceiling,
		counter: floor,
		pool:    make(map[uint64]struct{}),
	}
}

// Alloc returns an id from the recycle pool if one exists, else advances the
// counter. Fails with ErrExhausted once the counter reaches the ceiling.
func (a *Allocator) Alloc() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id := range a.pool {
		delete(a.pool, id)
		return id, nil
	}
	if a.counter >= a.ceiling {
		return 0, errors.Wrap(engineerr.ErrExhausted, "idpool: counter reached ceiling")
	}
	a.counter++
	return a.counter, nil
}

// Free returns id to the pool, then compacts: while the pool's maximum
// element equals the counter, pop it and decrement the counter.
func (a *Allocator) Free(ctx context.Context, id uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id <= a.floor || id > a.counter {
		return errors.Wrapf(engineerr.ErrInvalidArgument, "idpool: id %d out of range (%d, %d]", id, a.floor, a.counter)
	}
	if _, already := a.pool[id]; already {
		return errors.Wrapf(engineerr.ErrInvalidArgument, "idpool: double free of id %d", id)
	}

	a.pool[id] = struct{}{}
	for {
		if _, ok := a.pool[a.counter]; !ok {
			break
		}
		delete(a.pool, a.counter)
		a.counter--
	}

	if len(a.pool) > 0 && uint64(len(a.pool))*2 > a.counter-a.floor {
		dlog.Warnf(ctx, "idpool: recycle pool (%d entries) exceeds half of allocated range (%d)", len(a.pool), a.counter-a.floor)
	}
	return nil
}

// Outstanding returns the currently allocated ids, sorted. Exposed for tests
// and diagnostics, not part of the allocation hot path.
func (a *Allocator) Outstanding() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]uint64, 0, int(a.counter-a.floor)-len(a.pool))
	for id := a.floor + 1; id <= a.counter; id++ {
		if _, recycled := a.pool[id]; !recycled {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
