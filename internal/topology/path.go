package topology

import (
	"math"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dijkstra"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/engineerr"
)

// Hop is one (switch_id, port_in, port_out) triple of an established Path.
type Hop struct {
	SwitchID string
	PortIn   uint32
	PortOut  uint32
}

// Path is an ordered sequence of switch hops bookended by two entities.
type Path struct {
	EntityA, EntityB string
	Hops             []Hop

	AllocatedBandwidth    int64
	RemainingBandwidthAvg float64

	edgeIDs []string // internal: edges reserved by this path, for Release
}

// Length is the number of switch hops.
func (p *Path) Length() int { return len(p.Hops) }

// ConstructUnidirectionalPath finds the shortest-by-hops admissible path,
// reserving zero bandwidth (best-effort). previousSectorHash/nextSectorHash,
// when non-nil, pin the boundary link used at a Sector endpoint.
func (m *Model) ConstructUnidirectionalPath(fromEntity, toEntity string, previousSectorHash, nextSectorHash *uint64) (*Path, error) {
	return m.constructPath(fromEntity, toEntity, 0, previousSectorHash, nextSectorHash)
}

// ConstructBidirectionalPath finds the shortest-by-hops path on which every
// edge has at least allocatedBandwidth free in both directions, and reserves
// that amount on every edge of the chosen path.
func (m *Model) ConstructBidirectionalPath(fromEntity, toEntity string, allocatedBandwidth int64, previousSectorHash, nextSectorHash *uint64) (*Path, error) {
	if allocatedBandwidth <= 0 {
		return nil, errors.Wrap(engineerr.ErrInvalidArgument, "topology: allocated bandwidth must be positive")
	}
	return m.constructPath(fromEntity, toEntity, allocatedBandwidth, previousSectorHash, nextSectorHash)
}

// Release restores the bandwidth a bidirectional path reserved. Safe to call
// once per Path; a no-op for unidirectional paths (AllocatedBandwidth == 0).
func (m *Model) Release(p *Path) {
	if p.AllocatedBandwidth <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range p.edgeIDs {
		if link, ok := m.links[id]; ok {
			link.Free += p.AllocatedBandwidth
		}
	}
}

// boundEndpoint resolves an entity id plus an optional pinning hash into the
// concrete graph vertex to search from/to, and (if pinned) the Link/edge id
// of the mandatory boundary hop.
type boundEndpoint struct {
	vertex     string
	pinnedEdge string // "" unless pinned
}

func (m *Model) resolveEndpoint(entityID string, hash *uint64) (boundEndpoint, error) {
	e, ok := m.entities[entityID]
	if !ok {
		return boundEndpoint{}, errors.Wrapf(engineerr.ErrInvalidArgument, "unknown entity %s", entityID)
	}
	if hash == nil || e.Kind != KindSector {
		return boundEndpoint{vertex: entityID}, nil
	}

	neighbors, err := m.g.Neighbors(entityID)
	if err != nil {
		return boundEndpoint{}, errors.Wrap(err, "topology: neighbors")
	}
	for _, edge := range neighbors {
		link := m.links[edge.ID]
		if link.HashVal != *hash {
			continue
		}
		switchID, _ := m.switchSideOf(edge, entityID)
		return boundEndpoint{vertex: switchID, pinnedEdge: edge.ID}, nil
	}
	return boundEndpoint{}, errors.Wrapf(engineerr.ErrPathNotFound, "no boundary link with hash_val %d at %s", *hash, entityID)
}

func (m *Model) constructPath(fromEntity, toEntity string, allocatedBandwidth int64, previousSectorHash, nextSectorHash *uint64) (*Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, err := m.resolveEndpoint(fromEntity, previousSectorHash)
	if err != nil {
		return nil, err
	}
	to, err := m.resolveEndpoint(toEntity, nextSectorHash)
	if err != nil {
		return nil, err
	}

	g := m.g
	if allocatedBandwidth > 0 {
		g = m.feasibleSubgraph(allocatedBandwidth)
	}

	if from.vertex == to.vertex {
		return m.finishPath(fromEntity, toEntity, []string{from.vertex}, nil, from.pinnedEdge, to.pinnedEdge, allocatedBandwidth)
	}

	dist, _, err := dijkstra.Dijkstra(g, dijkstra.Source(from.vertex), dijkstra.WithReturnPath())
	if err != nil {
		return nil, errors.Wrap(err, "topology: dijkstra")
	}
	target, ok := dist[to.vertex]
	if !ok || target == math.MaxInt64 {
		return nil, errors.Wrapf(engineerr.ErrPathNotFound, "no admissible path from %s to %s", fromEntity, toEntity)
	}

	vertices, edgeIDs, err := m.bestShortestPath(g, from.vertex, to.vertex, dist, int(target))
	if err != nil {
		return nil, err
	}
	return m.finishPath(fromEntity, toEntity, vertices, edgeIDs, from.pinnedEdge, to.pinnedEdge, allocatedBandwidth)
}

// feasibleSubgraph clones the graph, dropping every edge whose free bandwidth
// is below the requested allocation.
func (m *Model) feasibleSubgraph(allocatedBandwidth int64) *core.Graph {
	clone := m.g.Clone()
	clone.FilterEdges(func(e *core.Edge) bool {
		link := m.links[e.ID]
		return link != nil && link.Free >= allocatedBandwidth
	})
	return clone
}

// bestShortestPath enumerates every simple path of exactly targetLen edges
// from source to dest (using dist as a layering oracle: a vertex v can be on
// a shortest path only if dist[v] is consistent with its position), and
// returns the one with the largest average free bandwidth. Dijkstra itself
// returns only one predecessor chain, so the bandwidth tie-break between
// equal-length shortest paths has to happen here.
func (m *Model) bestShortestPath(g *core.Graph, source, dest string, dist map[string]int64, targetLen int) ([]string, []string, error) {
	var bestVertices, bestEdges []string
	bestAvg := -1.0

	visited := map[string]bool{source: true}
	var walk func(cur string, vertices, edges []string, bwSum int64) error
	walk = func(cur string, vertices, edges []string, bwSum int64) error {
		if len(edges) == targetLen {
			if cur != dest {
				return nil
			}
			avg := float64(bwSum) / float64(len(edges))
			if avg > bestAvg {
				bestAvg = avg
				bestVertices = append([]string(nil), vertices...)
				bestEdges = append([]string(nil), edges...)
			}
			return nil
		}
		neighbors, err := g.Neighbors(cur)
		if err != nil {
			return errors.Wrap(err, "topology: neighbors")
		}
		for _, edge := range neighbors {
			next := edge.To
			if next == cur {
				next = edge.From
			}
			if visited[next] {
				continue
			}
			if dist[next] != int64(len(edges)+1) {
				continue
			}
			visited[next] = true
			link := m.links[edge.ID]
			free := int64(0)
			if link != nil {
				free = link.Free
			}
			if err := walk(next, append(vertices, next), append(edges, edge.ID), bwSum+free); err != nil {
				visited[next] = false
				return err
			}
			visited[next] = false
		}
		return nil
	}

	if err := walk(source, []string{source}, nil, 0); err != nil {
		return nil, nil, err
	}
	if bestVertices == nil {
		return nil, nil, errors.Wrapf(engineerr.ErrPathNotFound, "no simple path of length %d from %s to %s", targetLen, source, dest)
	}
	return bestVertices, bestEdges, nil
}

// finishPath converts a vertex/edge walk into switch-triples, reserving
// allocatedBandwidth on every edge (including any pinned boundary edges) when
// positive.
func (m *Model) finishPath(entityA, entityB string, vertices []string, edgeIDs []string, pinnedFrom, pinnedTo string, allocatedBandwidth int64) (*Path, error) {
	allEdges := make([]string, 0, len(edgeIDs)+2)
	if pinnedFrom != "" {
		allEdges = append(allEdges, pinnedFrom)
	}
	allEdges = append(allEdges, edgeIDs...)
	if pinnedTo != "" {
		allEdges = append(allEdges, pinnedTo)
	}

	hops := make([]Hop, 0, len(vertices))
	for i, v := range vertices {
		e, ok := m.entities[v]
		if !ok || e.Kind != KindSwitch {
			continue
		}
		var portIn, portOut uint32
		if i == 0 {
			if pinnedFrom != "" {
				portIn = m.portFacing(pinnedFrom, v)
			}
		} else {
			portIn = m.portFacing(edgeIDs[i-1], v)
		}
		if i == len(vertices)-1 {
			if pinnedTo != "" {
				portOut = m.portFacing(pinnedTo, v)
			}
		} else {
			portOut = m.portFacing(edgeIDs[i], v)
		}
		hops = append(hops, Hop{SwitchID: v, PortIn: portIn, PortOut: portOut})
	}

	if allocatedBandwidth > 0 {
		for _, id := range allEdges {
			link, ok := m.links[id]
			if !ok {
				continue
			}
			if link.Free < allocatedBandwidth {
				return nil, errors.Wrapf(engineerr.ErrPathNotFound, "edge %s has insufficient free bandwidth", id)
			}
		}
		for _, id := range allEdges {
			m.links[id].Free -= allocatedBandwidth
		}
	}

	// remaining_bandwidth_average is the mean of per-hop free bandwidth after
	// the reservation above.
	var sum int64
	for _, id := range allEdges {
		if link, ok := m.links[id]; ok {
			sum += link.Free
		}
	}
	avg := 0.0
	if len(allEdges) > 0 {
		avg = float64(sum) / float64(len(allEdges))
	}

	return &Path{
		EntityA:               entityA,
		EntityB:               entityB,
		Hops:                  hops,
		AllocatedBandwidth:    allocatedBandwidth,
		RemainingBandwidthAvg: avg,
		edgeIDs:               allEdges,
	}, nil
}

func (m *Model) portFacing(edgeID, vertexID string) uint32 {
	link, ok := m.links[edgeID]
	if !ok {
		return 0
	}
	edges := m.g.Edges()
	for _, e := range edges {
		if e.ID != edgeID {
			continue
		}
		if e.From == vertexID {
			return link.PortOnFrom
		}
		return link.PortOnTo
	}
	return 0
}
