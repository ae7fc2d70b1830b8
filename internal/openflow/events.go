package openflow

import (
	"context"

	"github.com/datawire/dlib/dlog"
)

// ParsePortReason maps the adapter's raw integer port-status reason code to
// a PortReason. An unrecognized code is reported, not silently coerced, so
// the caller can log it instead of crashing.
func ParsePortReason(raw int) (PortReason, error) {
	switch raw {
	case int(PortAdded):
		return PortAdded, nil
	case int(PortRemoved):
		return PortRemoved, nil
	case int(PortModified):
		return PortModified, nil
	default:
		return 0, errUnknownPortReason(raw)
	}
}

type errUnknownPortReason int

func (r errUnknownPortReason) Error() string {
	return "openflow: unrecognized port status reason code"
}

// NewPortStateChange builds a PortStateChange event from the adapter's raw
// reason code, logging (not failing) on an unrecognized code by falling back
// to PortModified.
func NewPortStateChange(ctx context.Context, dp Datapath, portNo uint32, rawReason int) PortStateChange {
	reason, err := ParsePortReason(rawReason)
	if err != nil {
		dlog.Warnf(ctx, "openflow: port %d on switch %d: %v (code %d), treating as MODIFIED", portNo, dp.ID(), err, rawReason)
		reason = PortModified
	}
	return PortStateChange{Datapath: dp, PortNo: portNo, Reason: reason}
}

// HandleEvent dispatches one adapter event to its logging handler. Each
// handler body is wrapped so a panic or error logs rather than bringing down
// the event pump goroutine.
func HandleEvent(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			dlog.Errorf(ctx, "openflow: event handler panic: %v", r)
		}
	}()

	switch e := ev.(type) {
	case SwitchConnect:
		handleSwitchConnect(ctx, e)
	case PacketIn:
		handlePacketIn(ctx, e)
	case PortStateChange:
		handlePortStateChange(ctx, e)
	default:
		dlog.Warnf(ctx, "openflow: unhandled event type %T", ev)
	}
}

func handleSwitchConnect(ctx context.Context, e SwitchConnect) {
	if e.Enter {
		dlog.Infof(ctx, "openflow: switch %d connected", e.Datapath.ID())
		return
	}
	dlog.Infof(ctx, "openflow: switch %d disconnected", e.Datapath.ID())
}

func handlePacketIn(ctx context.Context, e PacketIn) {
	dlog.Debugf(ctx, "openflow: packet-in on switch %d port %d (%d bytes)", e.Datapath.ID(), e.InPort, len(e.Data))
}

func handlePortStateChange(ctx context.Context, e PortStateChange) {
	dlog.Infof(ctx, "openflow: switch %d port %d %s", e.Datapath.ID(), e.PortNo, e.Reason)
}
