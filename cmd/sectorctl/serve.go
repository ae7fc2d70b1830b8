package main

import (
	"context"
	"net"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/config"
	"github.com/archsdn/sectorctl/internal/controller"
	"github.com/archsdn/sectorctl/internal/openflow"
)

// serve reconciles with central, assembles the engine, and runs the peer RPC
// server until ctx is cancelled. events is the channel the OpenFlow event
// pump goroutine drains; a real adapter implementation would send on it as
// switch-connect/packet-in/port-state notifications arrive.
func serve(ctx context.Context, env config.Env, events chan<- openflow.Event) error {
	eng, server, err := controller.Bootstrap(ctx, env, newCentralStub(env), noopAdapter{})
	if err != nil {
		return err
	}
	_ = events
	dlog.Infof(ctx, "sectorctl: listening on %s as %s", server.Addr(), eng.ID)
	return server.Serve(ctx)
}

// centralStub is a single-process stand-in for the central registry client:
// it answers reconciliation locally instead of calling a real service. Real
// deployments supply a central.Client backed by the actual registry.
type centralStub struct {
	env config.Env
}

func newCentralStub(env config.Env) *centralStub { return &centralStub{env: env} }

func (c *centralStub) RegisterController(context.Context, uuid.UUID, *central.AddressInfo, *central.AddressInfo) error {
	return nil
}

func (c *centralStub) UpdateControllerAddress(context.Context, uuid.UUID, *central.AddressInfo, *central.AddressInfo) error {
	return nil
}

func (c *centralStub) QueryControllerInfo(_ context.Context, id uuid.UUID) (central.ControllerInfo, error) {
	return central.ControllerInfo{
		ControllerID: id,
		IPv4:         &central.AddressInfo{IP: net.ParseIP(c.env.ControllerIP), Port: c.env.ControllerPort},
	}, nil
}

func (c *centralStub) QueryAddressInfo(context.Context, net.IP, net.IP, net.HardwareAddr) (central.HostLookup, error) {
	return central.HostLookup{}, central.ErrClientNotRegistered
}

func (c *centralStub) QueryCentralNetworkPolicies(context.Context) (central.NetworkPolicies, error) {
	return central.NetworkPolicies{}, nil
}

func (c *centralStub) QueryClientInfo(context.Context, uuid.UUID, int) (central.HostLookup, error) {
	return central.HostLookup{}, central.ErrClientNotRegistered
}

// noopAdapter is a stand-in southbound OpenFlow adapter: it accepts flow mods
// without pushing them anywhere. Real deployments supply an openflow.Adapter
// backed by an actual switch connection.
type noopAdapter struct{}

func (noopAdapter) SendMsg(context.Context, openflow.Datapath, openflow.FlowMod) error { return nil }

func (noopAdapter) GetDatapath(_ context.Context, dpid uint64) (openflow.Datapath, error) {
	return stubDatapath(dpid), nil
}

type stubDatapath uint64

func (d stubDatapath) ID() uint64 { return uint64(d) }
