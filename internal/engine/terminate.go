package engine

import (
	"context"
	"sync"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Terminate implements terminate_scenario: pop the scenario record, remove
// every local service handle it owns, and fan the termination out to every
// adjacent sector except the one that asked for it. Peer failures are logged
// but never roll back the local removal.
func (e *Engine) Terminate(ctx context.Context, req TerminateRequest) TerminateResult {
	gps := req.GPSID
	ctx = dlog.WithField(ctx, "gpsid", gps.Key())

	if !e.Scenarios.IsActive(gps.Key()) {
		return TerminateResult{Success: false, GPSID: gps, Reason: "not active"}
	}
	rec, err := e.Scenarios.Get(gps.Key(), true)
	if err != nil {
		return TerminateResult{Success: false, GPSID: gps, Reason: err.Error()}
	}

	if err := e.Services.RemoveByHandleIDs(ctx, rec.LocalHandles); err != nil {
		dlog.Errorf(ctx, "engine: terminate %s: remove local services: %v", gps.Key(), err)
	}

	// Fan out to every adjacent sector concurrently; each call is independent
	// and a peer failure never aborts the others, so the goroutines below
	// always return nil to errgroup and collect their own errors into
	// peerErrs under mu instead of letting errgroup's WithContext cancel
	// siblings on the first failure.
	var mu sync.Mutex
	var peerErrs *multierror.Error
	g, gctx := errgroup.WithContext(ctx)
	for sector := range rec.AdjacentSectors {
		if sector == req.RequestingSectorID {
			continue
		}
		sector := sector
		peer, err := uuid.Parse(sector)
		if err != nil {
			continue
		}
		g.Go(func() error {
			if err := e.callTerminateScenario(gctx, peer, TerminateRequest{GPSID: gps, RequestingSectorID: e.ID.String()}); err != nil {
				mu.Lock()
				peerErrs = multierror.Append(peerErrs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if peerErrs.ErrorOrNil() != nil {
		dlog.Errorf(ctx, "engine: terminate %s: peer fan-out: %v", gps.Key(), peerErrs)
	}

	return TerminateResult{Success: true, GPSID: gps}
}
