// Package controller wires the path activation engine's subsystems together
// and bootstraps them against the central registry and the peer RPC server.
package controller

import (
	"context"
	"net"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/config"
	"github.com/archsdn/sectorctl/internal/engine"
	"github.com/archsdn/sectorctl/internal/idpool"
	"github.com/archsdn/sectorctl/internal/installer"
	"github.com/archsdn/sectorctl/internal/openflow"
	"github.com/archsdn/sectorctl/internal/qlearn"
	"github.com/archsdn/sectorctl/internal/rpc"
	"github.com/archsdn/sectorctl/internal/scenario"
	"github.com/archsdn/sectorctl/internal/taskguard"
	"github.com/archsdn/sectorctl/internal/topology"
)

// NewEngine assembles a fresh Engine from its subsystems. The topology model
// starts empty; real deployments populate it from OpenFlow switch-connect and
// port-state-change events as they arrive (out of scope here, since that
// wiring belongs to the adapter implementation, not the engine).
func NewEngine(id uuid.UUID, centralClient central.Client, adapter openflow.Adapter) *engine.Engine {
	return &engine.Engine{
		ID:        id,
		Topology:  topology.NewModel(),
		Learning:  qlearn.NewTables(),
		Scenarios: scenario.NewRegistry(),
		Tasks:     taskguard.NewGuard(),
		Peers:     rpc.NewPeerPool(centralClient),
		OpenFlow:  adapter,
		Central:   centralClient,
		Cookies:   idpool.NewCookieAllocator(),
		Labels:    idpool.NewMPLSLabelAllocator(),
		Services:  installer.NewTables(),
	}
}

// Reconcile registers this controller's address with the central registry on
// first boot. Which path it takes after a registration collision depends on
// env.DBLocation:
//   - ":memory:" (volatile state): re-push the current address with
//     UpdateControllerAddress, tolerating IPv4InfoAlreadyRegistered /
//     IPv6InfoAlreadyRegistered -- there is nothing else locally that could
//     have drifted, since nothing survived the restart.
//   - a filesystem path (persistent state): walk every locally known client
//     and reconcile each one against the registry's current view, tolerating
//     ClientNotRegistered. Client persistence lives outside this controller,
//     so knownClientIDs is supplied by the caller -- empty on a fresh
//     file-backed boot.
func Reconcile(ctx context.Context, cl central.Client, id uuid.UUID, env config.Env, knownClientIDs []int) error {
	addr := &central.AddressInfo{IP: net.ParseIP(env.ControllerIP), Port: env.ControllerPort}

	err := cl.RegisterController(ctx, id, addr, nil)
	if err == nil {
		dlog.Infof(ctx, "controller: registered %s with central", id)
		return nil
	}
	if !errors.Is(err, central.ErrControllerAlreadyRegistered) {
		return errors.Wrap(err, "controller: reconcile with central")
	}

	if env.DBLocation == ":memory:" {
		dlog.Infof(ctx, "controller: %s already registered, updating address", id)
		if uerr := cl.UpdateControllerAddress(ctx, id, addr, nil); uerr != nil &&
			!errors.Is(uerr, central.ErrIPv4InfoAlreadyRegistered) &&
			!errors.Is(uerr, central.ErrIPv6InfoAlreadyRegistered) {
			return errors.Wrap(uerr, "controller: update address with central")
		}
		return nil
	}

	dlog.Infof(ctx, "controller: %s already registered, reconciling %d known client(s) against central", id, len(knownClientIDs))
	for _, clientID := range knownClientIDs {
		if _, qerr := cl.QueryClientInfo(ctx, id, clientID); qerr != nil {
			if errors.Is(qerr, central.ErrClientNotRegistered) {
				dlog.Warnf(ctx, "controller: client %d unknown to central, skipping", clientID)
				continue
			}
			return errors.Wrapf(qerr, "controller: reconcile client %d", clientID)
		}
	}
	return nil
}
