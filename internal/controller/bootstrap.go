package controller

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/config"
	"github.com/archsdn/sectorctl/internal/engine"
	"github.com/archsdn/sectorctl/internal/openflow"
	"github.com/archsdn/sectorctl/internal/rpc"
)

// Bootstrap reconciles this controller's identity with the central registry,
// assembles its Engine, and binds the peer RPC server. The returned Server
// has not started serving; call Serve(ctx) on it.
func Bootstrap(ctx context.Context, env config.Env, centralClient central.Client, adapter openflow.Adapter) (*engine.Engine, *rpc.Server, error) {
	id, err := env.ControllerID()
	if err != nil {
		return nil, nil, err
	}
	dlog.Infof(ctx, "controller: starting as %s", id)

	if err := Reconcile(ctx, centralClient, id, env, nil); err != nil {
		return nil, nil, err
	}

	eng := NewEngine(id, centralClient, adapter)

	addr := fmt.Sprintf("%s:%d", env.ControllerIP, env.ControllerPort)
	server, err := rpc.NewServer(addr, BuildDispatch(eng))
	if err != nil {
		return nil, nil, err
	}
	return eng, server, nil
}
