package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/gpsid"
)

// activateKwargs renders an ActivateRequest as the keyword arguments of an
// activate_scenario peer call.
func activateKwargs(req ActivateRequest) map[string]interface{} {
	m := map[string]interface{}{
		"source_controller_id":      req.GPSID.SourceControllerID.String(),
		"source_ipv4":               req.GPSID.SourceIPv4,
		"target_ipv4":               req.GPSID.TargetIPv4,
		"scenario_type":             string(req.GPSID.ScenarioType),
		"sector_requesting_service": req.SectorRequestingService,
		"hash_val":                  req.HashVal,
	}
	if req.MPLSLabel != nil {
		m["mpls_label"] = uint64(*req.MPLSLabel)
	}
	return m
}

// ActivateRequestFromArgs rebuilds an ActivateRequest from the positional/
// keyword arguments an activate_scenario RPC carried. Exported for the
// controller package's dispatch-table wiring.
func ActivateRequestFromArgs(_ []interface{}, kwargs map[string]interface{}) (ActivateRequest, error) {
	sourceID, err := uuid.Parse(asString(kwargs["source_controller_id"]))
	if err != nil {
		return ActivateRequest{}, err
	}
	req := ActivateRequest{
		GPSID: gpsid.ID{
			SourceControllerID: sourceID,
			SourceIPv4:         asString(kwargs["source_ipv4"]),
			TargetIPv4:         asString(kwargs["target_ipv4"]),
			ScenarioType:       gpsid.ScenarioType(asString(kwargs["scenario_type"])),
		},
		SectorRequestingService: asString(kwargs["sector_requesting_service"]),
		HashVal:                 asUint64(kwargs["hash_val"]),
	}
	if v, ok := kwargs["mpls_label"]; ok {
		label := uint32(asUint64(v))
		req.MPLSLabel = &label
	}
	return req, nil
}

// ActivateResultToBody renders an ActivateResult as the reply body the wire
// codec carries back.
func ActivateResultToBody(res ActivateResult) map[string]interface{} {
	return map[string]interface{}{
		"success":               res.Success,
		"global_path_search_id": res.GPSID.Key(),
		"q_value":               res.QValue,
		"path_length":           int64(res.PathLength),
		"reason":                res.Reason,
	}
}

func activateResultFromBody(gps gpsid.ID, body interface{}) ActivateResult {
	m, ok := body.(map[string]interface{})
	if !ok {
		return fail(gps, errors.New("malformed activate_scenario reply"))
	}
	res := ActivateResult{GPSID: gps}
	if v, ok := m["success"].(bool); ok {
		res.Success = v
	}
	if v, ok := m["q_value"].(float64); ok {
		res.QValue = v
	}
	res.PathLength = int(asUint64(m["path_length"]))
	if v, ok := m["reason"].(string); ok {
		res.Reason = v
	}
	return res
}

// callActivateScenario forwards an activate_scenario request to an adjacent
// sector's controller and decodes its reply.
func (e *Engine) callActivateScenario(ctx context.Context, peer uuid.UUID, req ActivateRequest) ActivateResult {
	rep, err := e.Peers.Call(ctx, peer, "activate_scenario", nil, activateKwargs(req))
	if err != nil {
		return fail(req.GPSID, err)
	}
	if rep.Status != 0 {
		return fail(req.GPSID, errors.New(asString(rep.Body)))
	}
	return activateResultFromBody(req.GPSID, rep.Body)
}

func terminateKwargs(req TerminateRequest) map[string]interface{} {
	return map[string]interface{}{
		"source_controller_id": req.GPSID.SourceControllerID.String(),
		"source_ipv4":          req.GPSID.SourceIPv4,
		"target_ipv4":          req.GPSID.TargetIPv4,
		"scenario_type":        string(req.GPSID.ScenarioType),
		"requesting_sector_id": req.RequestingSectorID,
	}
}

// TerminateRequestFromArgs rebuilds a TerminateRequest from the positional/
// keyword arguments a terminate_scenario RPC carried.
func TerminateRequestFromArgs(_ []interface{}, kwargs map[string]interface{}) (TerminateRequest, error) {
	sourceID, err := uuid.Parse(asString(kwargs["source_controller_id"]))
	if err != nil {
		return TerminateRequest{}, err
	}
	return TerminateRequest{
		GPSID: gpsid.ID{
			SourceControllerID: sourceID,
			SourceIPv4:         asString(kwargs["source_ipv4"]),
			TargetIPv4:         asString(kwargs["target_ipv4"]),
			ScenarioType:       gpsid.ScenarioType(asString(kwargs["scenario_type"])),
		},
		RequestingSectorID: asString(kwargs["requesting_sector_id"]),
	}, nil
}

// TerminateResultToBody renders a TerminateResult as a wire reply body.
func TerminateResultToBody(res TerminateResult) map[string]interface{} {
	return map[string]interface{}{
		"success":               res.Success,
		"global_path_search_id": res.GPSID.Key(),
		"reason":                res.Reason,
	}
}

func (e *Engine) callTerminateScenario(ctx context.Context, peer uuid.UUID, req TerminateRequest) error {
	rep, err := e.Peers.Call(ctx, peer, "terminate_scenario", nil, terminateKwargs(req))
	if err != nil {
		return err
	}
	if rep.Status != 0 {
		return errors.New(asString(rep.Body))
	}
	return nil
}

func mustParseUUID(s string) uuid.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return u
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	case int:
		return uint64(n)
	case float64:
		return uint64(n)
	default:
		return 0
	}
}
