// Package gpsid defines GlobalPathSearchID, the tuple that names one
// end-to-end path-establishment attempt across the federation.
package gpsid

import (
	"fmt"

	"github.com/google/uuid"
)

// ScenarioType is the traffic class an activation establishes.
type ScenarioType string

const (
	ICMPv4 ScenarioType = "ICMPv4"
	IPv4   ScenarioType = "IPv4"
	MPLS   ScenarioType = "MPLS"
)

// ID is the tuple (source_controller_id, source_ipv4, target_ipv4, scenario_type).
type ID struct {
	SourceControllerID uuid.UUID
	SourceIPv4         string
	TargetIPv4         string
	ScenarioType       ScenarioType
}

// Key renders the id as a stable map key, used by the scenario registry, the
// task guard, and anywhere else a GlobalPathSearchID needs to be a map key.
func (id ID) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", id.SourceControllerID, id.SourceIPv4, id.TargetIPv4, id.ScenarioType)
}

// L3L4 derives the implementation-task guard's classifier pair from the
// scenario type.
func (id ID) L3L4() (l3, l4 string) {
	switch id.ScenarioType {
	case ICMPv4:
		return "IPv4", "ICMP"
	case IPv4:
		return "IPv4", "*"
	case MPLS:
		return "MPLS", "*"
	default:
		return "", ""
	}
}
