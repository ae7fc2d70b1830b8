// Package central defines the interface contract of the central registry
// service consumed by this controller. The service itself (identity
// assignment, address bookkeeping) is out of scope; only the Go-side
// interface this controller calls against lives here.
package central

import (
	"context"
	"net"

	"github.com/google/uuid"
)

// Errors reported by a Client implementation.
var (
	ErrControllerAlreadyRegistered = clientError("central: controller already registered")
	ErrIPv4InfoAlreadyRegistered   = clientError("central: ipv4 info already registered")
	ErrIPv6InfoAlreadyRegistered   = clientError("central: ipv6 info already registered")
	ErrClientNotRegistered         = clientError("central: client not registered")
)

type clientError string

func (e clientError) Error() string { return string(e) }

// AddressInfo is a controller's advertised reachability for one IP family.
type AddressInfo struct {
	IP   net.IP
	Port int
}

// ControllerInfo is what the registry knows about one controller.
type ControllerInfo struct {
	ControllerID uuid.UUID
	IPv4         *AddressInfo
	IPv6         *AddressInfo
}

// HostLookup is the registry's answer to an address lookup.
type HostLookup struct {
	Name         string
	ControllerID uuid.UUID
}

// NetworkPolicies is the federation-wide addressing policy.
type NetworkPolicies struct {
	IPv4Network *net.IPNet
	IPv6Network *net.IPNet
	IPv4Service net.IP
	IPv6Service net.IP
	MACService  net.HardwareAddr
}

// Client is the consumed contract of the central registry service.
type Client interface {
	RegisterController(ctx context.Context, id uuid.UUID, ipv4, ipv6 *AddressInfo) error
	UpdateControllerAddress(ctx context.Context, id uuid.UUID, ipv4, ipv6 *AddressInfo) error
	QueryControllerInfo(ctx context.Context, id uuid.UUID) (ControllerInfo, error)
	QueryAddressInfo(ctx context.Context, ipv4, ipv6 net.IP, mac net.HardwareAddr) (HostLookup, error)
	QueryCentralNetworkPolicies(ctx context.Context) (NetworkPolicies, error)
	QueryClientInfo(ctx context.Context, controllerID uuid.UUID, clientID int) (HostLookup, error)
}
