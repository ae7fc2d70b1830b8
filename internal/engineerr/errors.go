// Package engineerr collects the sentinel error kinds shared by every core
// component, so callers can distinguish them with errors.Is regardless of
// which package raised them.
package engineerr

import "errors"

var (
	// ErrPathNotFound means no admissible local path exists between the
	// requested entities under the requested constraints.
	ErrPathNotFound = errors.New("sectorctl: path not found")

	// ErrTaskExists means a duplicate concurrent activation was rejected by
	// the implementation-task guard.
	ErrTaskExists = errors.New("sectorctl: implementation task already exists")

	// ErrScenarioNotActive means termination was requested for an unknown
	// global path search id.
	ErrScenarioNotActive = errors.New("sectorctl: scenario not active")

	// ErrExhausted means an id allocator has reached its range ceiling.
	ErrExhausted = errors.New("sectorctl: allocator exhausted")

	// ErrInvalidArgument means caller misuse: malformed RPC, double free,
	// out-of-range id, or similar programming error.
	ErrInvalidArgument = errors.New("sectorctl: invalid argument")

	// The four sentinels below surface verbatim as activate_scenario reply
	// reasons, so their text carries no "sectorctl:" prefix.

	// ErrAlreadyImplemented means the scenario is already active: distinct
	// from ErrScenarioNotActive, this is the activation-side duplicate check.
	ErrAlreadyImplemented = errors.New("already implemented")

	// ErrLoopDetected means an activation request looped back to its own
	// source controller.
	ErrLoopDetected = errors.New("loop detected")

	// ErrNoSectorsToExplore means the forward branch of the path activation
	// engine found no adjacent sector other than the requester.
	ErrNoSectorsToExplore = errors.New("no available sectors to explore")

	// ErrAlternativesExhausted means the exploration loop removed every
	// candidate link after a peer failure without any succeeding. Distinct
	// from ErrPathNotFound, which is what an activation reports when the
	// candidate list empties because the local path build itself failed.
	ErrAlternativesExhausted = errors.New("alternatives exhausted")

	// ErrSocketClosed means a peer proxy's cached connection failed and was
	// torn down; the caller must retry with a fresh proxy lookup.
	ErrSocketClosed = errors.New("sectorctl: peer socket closed")
)
