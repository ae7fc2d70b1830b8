// Package rpc implements the peer-to-peer controller protocol: a length-
// framed, compressed, wire-encoded request/reply exchange over TCP, plus the
// server-side dispatch table and a caching client-side proxy pool.
package rpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/engineerr"
	"github.com/archsdn/sectorctl/internal/wire"
)

const (
	connectTimeout = 2 * time.Second
	ioTimeout      = 2 * time.Second
	connectRetries = 3
)

// PeerPool caches one TCP connection per destination controller. Any I/O
// failure shuts the connection down; subsequent calls on that destination
// must dial fresh and will surface ErrSocketClosed for the call that
// observed the failure.
type PeerPool struct {
	mu      sync.Mutex
	central central.Client
	conns   map[uuid.UUID]net.Conn
}

// NewPeerPool returns a pool that resolves peer addresses via central.
func NewPeerPool(c central.Client) *PeerPool {
	return &PeerPool{central: c, conns: make(map[uuid.UUID]net.Conn)}
}

// Call invokes method on the peer controller identified by id, exactly once:
// a successful exchange is never retried, since side effects are not
// idempotent. Only the connect step retries, up to connectRetries times.
func (p *PeerPool) Call(ctx context.Context, id uuid.UUID, method string, args []interface{}, kwargs map[string]interface{}) (wire.Reply, error) {
	conn, err := p.connFor(ctx, id)
	if err != nil {
		return wire.Reply{}, err
	}

	payload, err := wire.EncodeRequest(wire.Request{Method: method, Args: args, Kwargs: kwargs})
	if err != nil {
		return wire.Reply{}, p.dropErr(id, err, "encode request")
	}

	if err := conn.SetDeadline(time.Now().Add(ioTimeout)); err != nil {
		return wire.Reply{}, p.dropErr(id, err, "set deadline")
	}
	if err := wire.WriteFrame(conn, payload); err != nil {
		return wire.Reply{}, p.dropErr(id, err, "write request")
	}

	respPayload, err := wire.ReadFrame(conn)
	if err != nil {
		return wire.Reply{}, p.dropErr(id, err, "read reply")
	}
	rep, err := wire.DecodeReply(respPayload)
	if err != nil {
		return wire.Reply{}, p.dropErr(id, err, "decode reply")
	}
	return rep, nil
}

func (p *PeerPool) connFor(ctx context.Context, id uuid.UUID) (net.Conn, error) {
	p.mu.Lock()
	if conn, ok := p.conns[id]; ok {
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	info, err := p.central.QueryControllerInfo(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "rpc: resolve peer address")
	}
	addr := info.IPv6
	if addr == nil {
		addr = info.IPv4
	}
	if addr == nil {
		return nil, errors.Errorf("rpc: controller %s has no advertised address", id)
	}
	dest := fmt.Sprintf("%s:%d", addr.IP, addr.Port)

	var lastErr error
	for attempt := 0; attempt < connectRetries; attempt++ {
		conn, err := net.DialTimeout("tcp", dest, connectTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		p.mu.Lock()
		p.conns[id] = conn
		p.mu.Unlock()
		return conn, nil
	}
	return nil, errors.Wrapf(lastErr, "rpc: connect to %s after %d attempts", dest, connectRetries)
}

func (p *PeerPool) drop(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[id]; ok {
		_ = conn.Close()
		delete(p.conns, id)
	}
}

// dropErr tears down the cached connection for id and wraps the I/O failure
// that caused it so the caller observes ErrSocketClosed, as documented above.
func (p *PeerPool) dropErr(id uuid.UUID, err error, msg string) error {
	p.drop(id)
	return errors.Wrapf(engineerr.ErrSocketClosed, "rpc: %s: %v", msg, err)
}

// ErrSocketClosed is returned by the Call whose I/O failure tore down the
// cached connection for a destination. Later calls to that destination do
// not return it: they dial a new connection.
var ErrSocketClosed = engineerr.ErrSocketClosed
