// Package topology holds the sector's view of its own switches, hosts, and
// sector boundaries, and builds forwarding paths across them.
package topology

import (
	"net"

	"github.com/google/uuid"
)

// EntityKind distinguishes the three kinds of topology vertex.
type EntityKind int

const (
	KindHost EntityKind = iota
	KindSwitch
	KindSector
)

func (k EntityKind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindSwitch:
		return "switch"
	case KindSector:
		return "sector"
	default:
		return "unknown"
	}
}

// Host is a leaf entity with an attachment point on exactly one switch port.
type Host struct {
	Name       string
	MAC        net.HardwareAddr
	IPv4       net.IP
	IPv6       net.IP
	SwitchID   string
	SwitchPort uint32
}

// Switch is a local datapath.
type Switch struct {
	DatapathID uint64
}

// Sector is a neighboring controller's domain, reached through one or more
// boundary links from local switches.
type Sector struct {
	ControllerID uuid.UUID
}

// Entity is one vertex of the topology graph: exactly one of Host, Switch,
// Sector is non-nil, matching Kind.
type Entity struct {
	ID     string
	Kind   EntityKind
	Host   *Host
	Switch *Switch
	Sector *Sector
}

// Link describes one edge of the topology graph: a physical or logical
// connection between two entities, at least one of which is a Switch.
type Link struct {
	// PortOnFrom/PortOnTo are the local switch ports this link occupies on
	// each endpoint, when that endpoint is a Switch. Zero when the endpoint
	// is a Host or Sector (a Host/Sector has exactly one attachment port,
	// recorded on the Switch side of the link instead).
	PortOnFrom uint32
	PortOnTo   uint32

	// HashVal identifies this specific boundary link to a Sector endpoint.
	// Meaningless (zero) for links that do not terminate on a Sector.
	HashVal uint64

	Capacity int64
	Free     int64
}
