package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/engineerr"
	"github.com/archsdn/sectorctl/internal/gpsid"
	"github.com/archsdn/sectorctl/internal/installer"
	"github.com/archsdn/sectorctl/internal/qlearn"
	"github.com/archsdn/sectorctl/internal/topology"
)

// candidateLink is one local boundary link toward an adjacent sector, a
// candidate for the exploration loop.
type candidateLink struct {
	SwitchID       string
	Port           uint32
	HashVal        uint64
	NeighborSector string
}

// activateForward handles a target outside this sector: extend the path one
// hop toward an adjacent sector and recurse via peer RPC.
func (e *Engine) activateForward(ctx context.Context, req ActivateRequest, target central.HostLookup) ActivateResult {
	gps := req.GPSID
	targetOwner := target.ControllerID.String()

	adjacents := e.Topology.QuerySectorsIDs()
	candidates := make([]candidateLink, 0, len(adjacents))
	targetIsAdjacent := false
	for _, sid := range adjacents {
		if sid == req.SectorRequestingService {
			continue
		}
		if sid == targetOwner {
			targetIsAdjacent = true
		}
	}
	if !targetIsAdjacent {
		for _, sid := range adjacents {
			if sid == req.SectorRequestingService {
				continue
			}
			links, err := e.Topology.QueryEdgesToSector(sid)
			if err != nil {
				continue
			}
			for _, l := range links {
				candidates = append(candidates, candidateLink{SwitchID: l.SwitchID, Port: l.Port, HashVal: l.HashVal, NeighborSector: sid})
			}
		}
	} else {
		links, err := e.Topology.QueryEdgesToSector(targetOwner)
		if err != nil {
			return fail(gps, err)
		}
		for _, l := range links {
			candidates = append(candidates, candidateLink{SwitchID: l.SwitchID, Port: l.Port, HashVal: l.HashVal, NeighborSector: targetOwner})
		}
	}

	if len(candidates) == 0 {
		return fail(gps, engineerr.ErrNoSectorsToExplore)
	}

	return e.exploreLinks(ctx, req, target, candidates, targetIsAdjacent)
}

// exploreLinks is the exploration loop: select a link, build the local path
// to its boundary, forward via peer RPC, update Q/KSPL, and either succeed
// or remove the link and retry. What it reports when the candidate list
// empties depends on why the last candidate was removed: a local path-build
// failure propagates as PathNotFound, while peer failures drain the list
// down to ErrAlternativesExhausted.
func (e *Engine) exploreLinks(ctx context.Context, req ActivateRequest, target central.HostLookup, candidates []candidateLink, targetAdjacent bool) ActivateResult {
	gps := req.GPSID
	targetIP := gps.TargetIPv4
	remaining := candidates

	for len(remaining) > 0 {
		idx := e.selectLinkIndex(gps.ScenarioType, remaining, targetAdjacent, targetIP)
		link := remaining[idx]

		path, err := e.buildPathToLink(req, link)
		if err != nil {
			remaining = removeAt(remaining, idx)
			if len(remaining) == 0 && errors.Is(err, engineerr.ErrPathNotFound) {
				return fail(gps, err)
			}
			continue
		}

		localLabel, err := e.Labels.Alloc()
		if err != nil {
			// Allocator exhaustion is fatal for the activation; another link
			// won't have more labels.
			e.Topology.Release(path)
			return fail(gps, err)
		}
		label := uint32(localLabel)

		peerReply := e.callActivateScenario(ctx, mustParseUUID(link.NeighborSector), ActivateRequest{
			GPSID:                   gps,
			SectorRequestingService: e.ID.String(),
			MPLSLabel:               &label,
			HashVal:                 link.HashVal,
		})

		if !peerReply.Success {
			e.penalizeFailure(req.GPSID.ScenarioType, link, targetAdjacent, targetIP, peerReply.QValue)
			e.releaseLabel(ctx, &label)
			e.Topology.Release(path)
			remaining = removeAt(remaining, idx)
			continue
		}

		return e.finishForwardSuccess(ctx, req, target, link, targetAdjacent, path, &label, peerReply)
	}

	return fail(gps, engineerr.ErrAlternativesExhausted)
}

func (e *Engine) buildPathToLink(req ActivateRequest, link candidateLink) (*topology.Path, error) {
	hash := req.HashVal
	nextHash := link.HashVal
	switch req.GPSID.ScenarioType {
	case gpsid.ICMPv4:
		return e.Topology.ConstructBidirectionalPath(req.SectorRequestingService, link.NeighborSector, bandwidthICMP, &hash, &nextHash)
	case gpsid.IPv4:
		return e.Topology.ConstructUnidirectionalPath(req.SectorRequestingService, link.NeighborSector, &hash, &nextHash)
	default:
		return nil, engineerr.ErrInvalidArgument
	}
}

// qKeyFor picks the Q-table key for a candidate link. Generic IPv4 scenarios
// always key by the neighbor sector, never by link, because the unidirectional
// IPv4 path doesn't enumerate multiple parallel links to the same neighbor the
// way ICMPv4 does. For ICMPv4, the target-adjacent sub-branch keys success by
// link but failure by sector; the general cross-adjacent exploration branch
// keys both success and failure by link.
func qKeyFor(st gpsid.ScenarioType, link candidateLink, targetAdjacent, success bool) string {
	if st == gpsid.IPv4 {
		return link.NeighborSector
	}
	if targetAdjacent && !success {
		return link.NeighborSector
	}
	return linkKey(link.SwitchID, link.Port)
}

// penalizeFailure applies the Q-penalty for a failed peer RPC.
func (e *Engine) penalizeFailure(st gpsid.ScenarioType, link candidateLink, targetAdjacent bool, targetIP string, forwardQ float64) {
	key := qKeyFor(st, link, targetAdjacent, false)
	old := e.Learning.GetQ(key, targetIP)
	e.Learning.SetQ(key, targetIP, qlearn.NewQValue(old, forwardQ, -1))
}

func (e *Engine) finishForwardSuccess(ctx context.Context, req ActivateRequest, target central.HostLookup, link candidateLink, targetAdjacent bool, path *topology.Path, localLabel *uint32, peer ActivateResult) ActivateResult {
	gps := req.GPSID
	targetIP := gps.TargetIPv4
	key := qKeyFor(gps.ScenarioType, link, targetAdjacent, true)

	kspl := peer.PathLength + 1
	e.Learning.SetKSPL(key, targetIP, kspl)
	reward := path.RemainingBandwidthAvg / float64(kspl)
	old := e.Learning.GetQ(key, targetIP)
	newQ := qlearn.NewQValue(old, peer.QValue, reward)
	e.Learning.SetQ(key, targetIP, newQ)

	entityA, errA := e.Topology.QueryEntity(path.EntityA)
	entityB, errB := e.Topology.QueryEntity(path.EntityB)
	var handle *installer.Handle
	if errA == nil && errB == nil && entityA.Kind == topology.KindSector && entityB.Kind == topology.KindSector {
		h, err := installer.SectorToSectorMPLSFlowActivation(ctx, e.OpenFlow, e.Cookies, e.Topology, path, *localLabel, derefOr(req.MPLSLabel, 0))
		if err != nil {
			e.releaseLabel(ctx, localLabel)
			e.Topology.Release(path)
			return fail(gps, err)
		}
		h.OwnLabel(e.Labels, localLabel)
		e.Services.Register(installer.ServiceMPLS, installer.TypeTwoWay, h)
		handle = h
	} else {
		h, err := e.installLocalEndpoint(ctx, gps.ScenarioType, path, localLabel, req.MPLSLabel)
		if err != nil {
			e.releaseLabel(ctx, localLabel)
			e.Topology.Release(path)
			return fail(gps, err)
		}
		handle = h
	}

	adjacents := map[string]struct{}{
		req.SectorRequestingService: {},
		link.NeighborSector:         {},
	}
	if err := e.Scenarios.SetActive(gps.Key(), []string{handle.ID}, adjacents); err != nil {
		_ = e.Services.RemoveByHandleIDs(ctx, []string{handle.ID})
		return fail(gps, err)
	}

	return ActivateResult{
		Success:    true,
		GPSID:      gps,
		QValue:     newQ,
		PathLength: path.Length() + peer.PathLength - 1,
	}
}

// selectLinkIndex implements the never-used-first, otherwise-max-Q rule.
func (e *Engine) selectLinkIndex(st gpsid.ScenarioType, links []candidateLink, targetAdjacent bool, targetIP string) int {
	for i, l := range links {
		if e.Learning.GetQ(qKeyFor(st, l, targetAdjacent, true), targetIP) == 0 {
			return i
		}
	}
	best := 0
	bestQ := e.Learning.GetQ(qKeyFor(st, links[0], targetAdjacent, true), targetIP)
	for i := 1; i < len(links); i++ {
		q := e.Learning.GetQ(qKeyFor(st, links[i], targetAdjacent, true), targetIP)
		if q > bestQ {
			bestQ = q
			best = i
		}
	}
	return best
}

func removeAt(links []candidateLink, idx int) []candidateLink {
	out := make([]candidateLink, 0, len(links)-1)
	out = append(out, links[:idx]...)
	out = append(out, links[idx+1:]...)
	return out
}

func derefOr(v *uint32, def uint32) uint32 {
	if v == nil {
		return def
	}
	return *v
}
