// Package installer translates an established topology.Path into concrete
// OpenFlow forwarding actions, allocating cookies for each installed entry
// and returning a handle that frees them when dropped.
package installer

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/idpool"
	"github.com/archsdn/sectorctl/internal/openflow"
	"github.com/archsdn/sectorctl/internal/topology"
)

// Flow-table and priority constants shared by every installer.
const (
	TableClassifier uint8 = 0
	TableForwarding uint8 = 1
	TableMPLS       uint8 = 2

	PriorityDefault  uint16 = 1
	PriorityICMP     uint16 = 100
	PriorityIPv4     uint16 = 90
	PriorityMPLSSwap uint16 = 110
)

// NetworkService is the top level of the mapped-services table.
type NetworkService string

const (
	ServiceIPv4 NetworkService = "IPv4"
	ServiceMPLS NetworkService = "MPLS"
)

// ServiceType is the second level of the mapped-services table.
type ServiceType string

const (
	TypeICMP   ServiceType = "ICMP"
	TypeUDP    ServiceType = "UDP"
	TypeTCP    ServiceType = "TCP"
	TypeAny    ServiceType = "*"
	TypeOneWay ServiceType = "OneWay"
	TypeTwoWay ServiceType = "TwoWay"
)

// Handle owns the cookies of one service installation. Dropping it (Release)
// frees the cookies, the owned MPLS label and the path's bandwidth
// reservation; it sends no flow-removal message, so the flow entries it
// installed stay on the switches. Release must never be relied upon to
// happen via garbage collection.
type Handle struct {
	ID      string
	cookies []uint64
	pool    *idpool.Allocator
	path    *topology.Path
	topo    *topology.Model

	label     *uint32
	labelPool *idpool.Allocator
}

// OwnLabel transfers ownership of the scenario's local MPLS label to the
// handle, so Release returns it to its pool along with the cookies. A nil
// label is a no-op: short paths switch directly without a tunnel label.
func (h *Handle) OwnLabel(pool *idpool.Allocator, label *uint32) {
	h.labelPool = pool
	h.label = label
}

// Release frees every cookie this handle owns and releases the path's
// bandwidth reservation. Safe to call once; idempotent thereafter is the
// caller's responsibility via the mapped-services table, which removes the
// entry before calling Release.
func (h *Handle) Release(ctx context.Context) error {
	var firstErr error
	for _, c := range h.cookies {
		if err := h.pool.Free(ctx, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.label != nil && h.labelPool != nil {
		if err := h.labelPool.Free(ctx, uint64(*h.label)); err != nil && firstErr == nil {
			firstErr = err
		}
		h.label = nil
	}
	if h.topo != nil && h.path != nil {
		h.topo.Release(h.path)
	}
	return firstErr
}

func allocCookies(n int, pool *idpool.Allocator) ([]uint64, error) {
	out := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		id, err := pool.Alloc()
		if err != nil {
			return nil, errors.Wrap(err, "installer: allocate cookie")
		}
		out = append(out, id)
	}
	return out, nil
}

// ICMPv4FlowActivation installs a bidirectional ICMP path, host-to-host or
// mid-path, optionally MPLS-wrapped when localLabel is non-nil.
func ICMPv4FlowActivation(ctx context.Context, adapter openflow.Adapter, cookies *idpool.Allocator, topo *topology.Model, path *topology.Path, localLabel, upstreamLabel *uint32) (*Handle, error) {
	ids, err := allocCookies(len(path.Hops), cookies)
	if err != nil {
		return nil, err
	}
	for i, hop := range path.Hops {
		mod := openflow.FlowMod{
			Table:    TableForwarding,
			Priority: PriorityICMP,
			Cookie:   ids[i],
			Match:    openflow.Match{InPort: hop.PortIn, IPProtocol: 1},
			Actions:  []openflow.Action{{OutputPort: hop.PortOut}},
		}
		if localLabel != nil {
			mod.Actions[0].PushMPLS = localLabel
		}
		dp, err := adapter.GetDatapath(ctx, switchDatapathID(hop.SwitchID))
		if err != nil {
			return nil, errors.Wrap(err, "installer: get datapath")
		}
		if err := adapter.SendMsg(ctx, dp, mod); err != nil {
			return nil, errors.Wrap(err, "installer: send flow mod")
		}
	}
	return &Handle{ID: handleID(ids), cookies: ids, pool: cookies, path: path, topo: topo}, nil
}

// IPv4GenericFlowActivation installs a unidirectional generic IPv4 path,
// optionally MPLS-wrapped when localLabel is non-nil.
func IPv4GenericFlowActivation(ctx context.Context, adapter openflow.Adapter, cookies *idpool.Allocator, topo *topology.Model, path *topology.Path, localLabel, upstreamLabel *uint32) (*Handle, error) {
	ids, err := allocCookies(len(path.Hops), cookies)
	if err != nil {
		return nil, err
	}
	for i, hop := range path.Hops {
		mod := openflow.FlowMod{
			Table:    TableForwarding,
			Priority: PriorityIPv4,
			Cookie:   ids[i],
			Match:    openflow.Match{InPort: hop.PortIn, EthType: 0x0800},
			Actions:  []openflow.Action{{OutputPort: hop.PortOut}},
		}
		if localLabel != nil {
			mod.Actions[0].PushMPLS = localLabel
		}
		dp, err := adapter.GetDatapath(ctx, switchDatapathID(hop.SwitchID))
		if err != nil {
			return nil, errors.Wrap(err, "installer: get datapath")
		}
		if err := adapter.SendMsg(ctx, dp, mod); err != nil {
			return nil, errors.Wrap(err, "installer: send flow mod")
		}
	}
	return &Handle{ID: handleID(ids), cookies: ids, pool: cookies, path: path, topo: topo}, nil
}

// SectorToSectorMPLSFlowActivation installs an MPLS label-swap between two
// sector boundaries; it always consumes both labels.
func SectorToSectorMPLSFlowActivation(ctx context.Context, adapter openflow.Adapter, cookies *idpool.Allocator, topo *topology.Model, path *topology.Path, localLabel, upstreamLabel uint32) (*Handle, error) {
	ids, err := allocCookies(len(path.Hops), cookies)
	if err != nil {
		return nil, err
	}
	for i, hop := range path.Hops {
		mod := openflow.FlowMod{
			Table:    TableMPLS,
			Priority: PriorityMPLSSwap,
			Cookie:   ids[i],
			Match:    openflow.Match{InPort: hop.PortIn, MPLSLabel: upstreamLabel},
			Actions:  []openflow.Action{{OutputPort: hop.PortOut, SetMPLS: &localLabel}},
		}
		dp, err := adapter.GetDatapath(ctx, switchDatapathID(hop.SwitchID))
		if err != nil {
			return nil, errors.Wrap(err, "installer: get datapath")
		}
		if err := adapter.SendMsg(ctx, dp, mod); err != nil {
			return nil, errors.Wrap(err, "installer: send flow mod")
		}
	}
	return &Handle{ID: handleID(ids), cookies: ids, pool: cookies, path: path, topo: topo}, nil
}

func handleID(cookies []uint64) string {
	if len(cookies) == 0 {
		return "empty-handle"
	}
	return "handle-" + strconv.FormatUint(cookies[0], 10)
}

// switchDatapathID is a placeholder mapping from the topology's string
// switch id to the numeric datapath id the adapter expects; real topology
// discovery (out of scope) is expected to key entities by the datapath id
// directly, in which case this becomes a straight parse.
func switchDatapathID(switchID string) uint64 {
	var id uint64
	for _, c := range switchID {
		id = id*31 + uint64(c)
	}
	return id
}
