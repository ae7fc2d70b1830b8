package controller

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/archsdn/sectorctl/internal/engine"
	"github.com/archsdn/sectorctl/internal/rpc"
)

// BuildDispatch wires the fixed peer RPC method table to eng: req_local_time,
// publish_event, query_address_info, activate_scenario, terminate_scenario.
func BuildDispatch(eng *engine.Engine) rpc.Dispatch {
	return rpc.Dispatch{
		"req_local_time":     reqLocalTime,
		"publish_event":      publishEvent,
		"query_address_info": queryAddressInfo(eng),
		"activate_scenario":  activateScenario(eng),
		"terminate_scenario": terminateScenario(eng),
	}
}

func reqLocalTime(_ context.Context, _ []interface{}, _ map[string]interface{}) (interface{}, error) {
	return time.Now().UTC().Format(time.RFC3339Nano), nil
}

func publishEvent(ctx context.Context, _ []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	dlog.Infof(ctx, "controller: published event %v", kwargs)
	return true, nil
}

func queryAddressInfo(eng *engine.Engine) rpc.Handler {
	return func(_ context.Context, _ []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		ipv4, _ := kwargs["ipv4"].(string)
		host, err := eng.Topology.QueryHostByAddress(ipv4)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"name":          host.Host.Name,
			"controller_id": eng.ID.String(),
		}, nil
	}
}

func activateScenario(eng *engine.Engine) rpc.Handler {
	return func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		req, err := engine.ActivateRequestFromArgs(args, kwargs)
		if err != nil {
			return nil, err
		}
		return engine.ActivateResultToBody(eng.Activate(ctx, req)), nil
	}
}

func terminateScenario(eng *engine.Engine) rpc.Handler {
	return func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		req, err := engine.TerminateRequestFromArgs(args, kwargs)
		if err != nil {
			return nil, err
		}
		return engine.TerminateResultToBody(eng.Terminate(ctx, req)), nil
	}
}
