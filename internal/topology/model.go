package topology

import (
	"sync"

	"github.com/katalvlaran/lvlath/core"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/engineerr"
)

// Model is the sector's undirected multigraph of Host/Switch/Sector entities,
// with per-edge bandwidth bookkeeping. A Model is safe for concurrent use.
type Model struct {
	mu sync.RWMutex

	g        *core.Graph
	entities map[string]*Entity
	links    map[string]*Link // edge id -> link metadata, mirrors g's edge catalog
}

// NewModel returns an empty topology.
func NewModel() *Model {
	return &Model{
		g:        core.NewMixedGraph(core.WithWeighted(), core.WithMultiEdges()),
		entities: make(map[string]*Entity),
		links:    make(map[string]*Link),
	}
}

// AddEntity registers a Host, Switch, or Sector vertex. Re-adding the same id
// is a no-op if the kind matches.
func (m *Model) AddEntity(e *Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entities[e.ID]; ok {
		if existing.Kind == e.Kind {
			return nil
		}
		return errors.Wrapf(engineerr.ErrInvalidArgument, "entity %s already exists with a different kind", e.ID)
	}
	if err := m.g.AddVertex(e.ID); err != nil {
		return errors.Wrap(err, "topology: add vertex")
	}
	m.entities[e.ID] = e
	return nil
}

// AddLink creates an undirected edge between two already-registered entities.
// At least one endpoint must be a Switch.
func (m *Model) AddLink(fromID, toID string, link *Link) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.entities[fromID]
	if !ok {
		return "", errors.Wrapf(engineerr.ErrInvalidArgument, "unknown entity %s", fromID)
	}
	to, ok := m.entities[toID]
	if !ok {
		return "", errors.Wrapf(engineerr.ErrInvalidArgument, "unknown entity %s", toID)
	}
	if from.Kind != KindSwitch && to.Kind != KindSwitch {
		return "", errors.Wrap(engineerr.ErrInvalidArgument, "topology: a link must touch at least one switch")
	}

	id, err := m.g.AddEdge(fromID, toID, 1)
	if err != nil {
		return "", errors.Wrap(err, "topology: add edge")
	}
	linkCopy := *link
	m.links[id] = &linkCopy
	return id, nil
}

// QueryEntity returns the entity registered under id.
func (m *Model) QueryEntity(id string) (*Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[id]
	if !ok {
		return nil, errors.Wrapf(engineerr.ErrInvalidArgument, "unknown entity %s", id)
	}
	return e, nil
}

// QuerySectorsIDs returns the set of adjacent sector entity ids.
func (m *Model) QuerySectorsIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for id, e := range m.entities {
		if e.Kind == KindSector {
			out = append(out, id)
		}
	}
	return out
}

// EdgeToSector is one local link reaching an adjacent sector.
type EdgeToSector struct {
	SwitchID string
	Port     uint32
	HashVal  uint64
}

// QueryEdgesToSector returns every local link that peers with sector sid.
func (m *Model) QueryEdgesToSector(sid string) ([]EdgeToSector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sector, ok := m.entities[sid]
	if !ok || sector.Kind != KindSector {
		return nil, errors.Wrapf(engineerr.ErrInvalidArgument, "unknown sector %s", sid)
	}

	neighbors, err := m.g.Neighbors(sid)
	if err != nil {
		return nil, errors.Wrap(err, "topology: neighbors")
	}
	out := make([]EdgeToSector, 0, len(neighbors))
	for _, edge := range neighbors {
		link := m.links[edge.ID]
		switchID, port := m.switchSideOf(edge, sid)
		out = append(out, EdgeToSector{SwitchID: switchID, Port: port, HashVal: link.HashVal})
	}
	return out, nil
}

// QueryHostByAddress finds the locally-known Host entity matching ipv4 (an
// empty string matches none). Used by the peer-facing query_address_info
// handler, which answers for hosts this sector itself owns.
func (m *Model) QueryHostByAddress(ipv4 string) (*Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entities {
		if e.Kind != KindHost || e.Host == nil {
			continue
		}
		if ipv4 != "" && e.Host.IPv4.String() == ipv4 {
			return e, nil
		}
	}
	return nil, errors.Wrapf(engineerr.ErrInvalidArgument, "no known host at %s", ipv4)
}

// switchSideOf returns the switch endpoint of edge and the port it occupies
// there, given that the "other" side is otherID.
func (m *Model) switchSideOf(edge *core.Edge, otherID string) (string, uint32) {
	link := m.links[edge.ID]
	if edge.From == otherID {
		return edge.To, link.PortOnTo
	}
	return edge.From, link.PortOnFrom
}
