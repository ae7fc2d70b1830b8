// Package taskguard implements the classifier-partitioned mutual-exclusion
// token that blocks duplicate concurrent activations of the same global path
// search id.
package taskguard

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/engineerr"
)

// Class is one (L3, L4) classifier bucket.
type Class struct {
	L3, L4 string
}

var (
	ClassIPv4ICMP = Class{"IPv4", "ICMP"}
	ClassIPv4UDP  = Class{"IPv4", "UDP"}
	ClassIPv4TCP  = Class{"IPv4", "TCP"}
	ClassIPv4Any  = Class{"IPv4", "*"}
	ClassMPLSAny  = Class{"MPLS", "*"}
)

// Guard is a set of (gpsid, class) tokens, one per in-flight activation.
type Guard struct {
	mu     sync.Mutex
	tokens map[Class]map[string]struct{}
}

// NewGuard returns an empty guard with all five classifier buckets present.
func NewGuard() *Guard {
	g := &Guard{tokens: make(map[Class]map[string]struct{})}
	for _, c := range []Class{ClassIPv4ICMP, ClassIPv4UDP, ClassIPv4TCP, ClassIPv4Any, ClassMPLSAny} {
		g.tokens[c] = make(map[string]struct{})
	}
	return g
}

// Token is a scoped acquisition; Release must be called at least once,
// typically via defer immediately after a successful Acquire, on every exit
// path — including ones raised by path-building failures deep in the
// exploration loop. Never rely on a finalizer here: GC timing is
// non-deterministic and another activation could starve behind a leaked
// token.
type Token struct {
	guard    *Guard
	class    Class
	gpsid    string
	released bool
}

// Acquire creates a token for (gpsid, class). Fails with ErrTaskExists if one
// is already held.
func (g *Guard) Acquire(class Class, gpsid string) (*Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	bucket, ok := g.tokens[class]
	if !ok {
		return nil, errors.Wrapf(engineerr.ErrInvalidArgument, "taskguard: unknown class %+v", class)
	}
	if _, exists := bucket[gpsid]; exists {
		return nil, errors.Wrapf(engineerr.ErrTaskExists, "taskguard: %s already has a task in class %+v", gpsid, class)
	}
	bucket[gpsid] = struct{}{}
	return &Token{guard: g, class: class, gpsid: gpsid}, nil
}

// Release removes the token. Safe to call more than once; subsequent calls
// are no-ops.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.guard.mu.Lock()
	defer t.guard.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	delete(t.guard.tokens[t.class], t.gpsid)
}
