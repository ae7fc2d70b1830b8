// Package engine implements the path activation engine: the recursive state
// machine that, given an activate_scenario request, either terminates
// locally, forwards to an adjacent sector via peer RPC, or exhausts
// alternatives.
package engine

import (
	"context"
	"fmt"
	"net"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/engineerr"
	"github.com/archsdn/sectorctl/internal/gpsid"
	"github.com/archsdn/sectorctl/internal/idpool"
	"github.com/archsdn/sectorctl/internal/installer"
	"github.com/archsdn/sectorctl/internal/openflow"
	"github.com/archsdn/sectorctl/internal/qlearn"
	"github.com/archsdn/sectorctl/internal/rpc"
	"github.com/archsdn/sectorctl/internal/scenario"
	"github.com/archsdn/sectorctl/internal/taskguard"
	"github.com/archsdn/sectorctl/internal/topology"
)

// ActivateRequest is the inbound activate_scenario call.
type ActivateRequest struct {
	GPSID                   gpsid.ID
	SectorRequestingService string
	MPLSLabel               *uint32
	HashVal                 uint64
}

// ActivateResult is the activate_scenario reply. Reason is the
// human-readable failure text that crosses the wire; Err is the underlying
// local failure (nil on success and for peer-reported failures decoded off
// the wire), so callers on the same controller can distinguish failure kinds
// with errors.Is against the engineerr sentinels.
type ActivateResult struct {
	Success    bool
	GPSID      gpsid.ID
	QValue     float64
	PathLength int
	Reason     string
	Err        error
}

// TerminateRequest is the inbound terminate_scenario call.
type TerminateRequest struct {
	GPSID              gpsid.ID
	RequestingSectorID string
}

// TerminateResult is the terminate_scenario reply.
type TerminateResult struct {
	Success bool
	GPSID   gpsid.ID
	Reason  string
}

// bandwidthICMP is the bandwidth reservation, in abstract units, a
// bidirectional ICMPv4 path requires.
const bandwidthICMP = 100

// Engine bundles every subsystem the activation state machine touches:
// constructed once at bootstrap and threaded by reference into the RPC
// dispatch table, so there is no package-global mutable state.
type Engine struct {
	ID uuid.UUID

	Topology  *topology.Model
	Learning  *qlearn.Tables
	Scenarios *scenario.Registry
	Tasks     *taskguard.Guard
	Peers     *rpc.PeerPool
	OpenFlow  openflow.Adapter
	Central   central.Client
	Cookies   *idpool.Allocator
	Labels    *idpool.Allocator
	Services  *installer.Tables
}

// Activate runs one full activation: preconditions, task token, target
// resolution, then either local installation or recursive forwarding.
func (e *Engine) Activate(ctx context.Context, req ActivateRequest) ActivateResult {
	gps := req.GPSID
	ctx = dlog.WithField(ctx, "gpsid", gps.Key())

	if gps.SourceControllerID == e.ID {
		return fail(gps, engineerr.ErrLoopDetected)
	}
	if e.Scenarios.IsActive(gps.Key()) {
		return fail(gps, engineerr.ErrAlreadyImplemented)
	}

	l3, l4 := gps.L3L4()
	class := taskguard.Class{L3: l3, L4: l4}
	tok, err := e.Tasks.Acquire(class, gps.Key())
	if err != nil {
		return fail(gps, err)
	}
	defer tok.Release()

	target, err := e.Central.QueryAddressInfo(ctx, net.ParseIP(gps.TargetIPv4), nil, nil)
	if err != nil {
		return fail(gps, errors.Wrap(err, "resolve target"))
	}

	if target.ControllerID == e.ID {
		return e.activateLocal(ctx, req, target)
	}
	return e.activateForward(ctx, req, target)
}

func (e *Engine) activateLocal(ctx context.Context, req ActivateRequest, target central.HostLookup) ActivateResult {
	gps := req.GPSID
	hash := req.HashVal

	var path *topology.Path
	var err error
	switch gps.ScenarioType {
	case gpsid.ICMPv4:
		path, err = e.Topology.ConstructBidirectionalPath(req.SectorRequestingService, target.Name, bandwidthICMP, &hash, nil)
	case gpsid.IPv4:
		path, err = e.Topology.ConstructUnidirectionalPath(req.SectorRequestingService, target.Name, &hash, nil)
	default:
		return fail(gps, errors.Wrapf(engineerr.ErrInvalidArgument, "scenario type %q", gps.ScenarioType))
	}
	if err != nil {
		return fail(gps, err)
	}

	localLabel, err := e.allocLabelIfLong(path)
	if err != nil {
		e.Topology.Release(path)
		return fail(gps, err)
	}

	handle, err := e.installLocalEndpoint(ctx, gps.ScenarioType, path, localLabel, req.MPLSLabel)
	if err != nil {
		e.releaseLabel(ctx, localLabel)
		e.Topology.Release(path)
		return fail(gps, err)
	}

	adjacents := map[string]struct{}{req.SectorRequestingService: {}}
	if err := e.Scenarios.SetActive(gps.Key(), []string{handle.ID}, adjacents); err != nil {
		return fail(gps, err)
	}

	return ActivateResult{Success: true, GPSID: gps, QValue: 1, PathLength: path.Length() - 1}
}

func (e *Engine) installLocalEndpoint(ctx context.Context, st gpsid.ScenarioType, path *topology.Path, localLabel, upstreamLabel *uint32) (*installer.Handle, error) {
	if st == gpsid.ICMPv4 {
		h, err := installer.ICMPv4FlowActivation(ctx, e.OpenFlow, e.Cookies, e.Topology, path, localLabel, upstreamLabel)
		if err != nil {
			return nil, err
		}
		h.OwnLabel(e.Labels, localLabel)
		e.Services.Register(installer.ServiceIPv4, installer.TypeICMP, h)
		return h, nil
	}
	h, err := installer.IPv4GenericFlowActivation(ctx, e.OpenFlow, e.Cookies, e.Topology, path, localLabel, upstreamLabel)
	if err != nil {
		return nil, err
	}
	h.OwnLabel(e.Labels, localLabel)
	e.Services.Register(installer.ServiceIPv4, installer.TypeAny, h)
	return h, nil
}

// allocLabelIfLong allocates a local MPLS label only when the path needs
// internal tunneling (>= 3 triples); otherwise direct switching suffices and
// the label stays nil.
func (e *Engine) allocLabelIfLong(path *topology.Path) (*uint32, error) {
	if path.Length() < 3 {
		return nil, nil
	}
	id, err := e.Labels.Alloc()
	if err != nil {
		return nil, errors.Wrap(err, "engine: allocate mpls label")
	}
	label := uint32(id)
	return &label, nil
}

func (e *Engine) releaseLabel(ctx context.Context, label *uint32) {
	if label == nil {
		return
	}
	_ = e.Labels.Free(ctx, uint64(*label))
}

func fail(gps gpsid.ID, err error) ActivateResult {
	return ActivateResult{Success: false, GPSID: gps, Reason: err.Error(), Err: err}
}

// linkKey renders a (switch, port) boundary link as a Q-table key.
func linkKey(switchID string, port uint32) string {
	return fmt.Sprintf("%s:%d", switchID, port)
}
