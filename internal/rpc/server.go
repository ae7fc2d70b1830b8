package rpc

import (
	"context"
	"net"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"github.com/archsdn/sectorctl/internal/wire"
)

// Handler answers one dispatched method call. args/kwargs are whatever the
// caller sent; the result is whatever the method produces on success. An
// error reply becomes a status-1 human-readable string, never a raw Go
// error value (the wire format has no typed-error channel).
type Handler func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error)

// Dispatch is the fixed method table: req_local_time, publish_event,
// query_address_info, activate_scenario, terminate_scenario. Unknown methods
// get a status-1 "Unknown Request" reply.
type Dispatch map[string]Handler

// Server accepts peer connections and answers RPCs against a Dispatch table.
type Server struct {
	dispatch Dispatch
	listener net.Listener
}

// NewServer binds addr and returns a Server ready to Serve.
func NewServer(addr string, dispatch Dispatch) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "rpc: listen")
	}
	return &Server{dispatch: dispatch, listener: l}, nil
}

// Addr returns the bound address, useful when addr was ":0".
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until ctx is cancelled, handling each on its own
// goroutine. It returns when the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "rpc: accept")
			}
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		if err := conn.SetDeadline(time.Now().Add(ioTimeout)); err != nil {
			dlog.Errorf(ctx, "rpc: set deadline: %v", err)
			return
		}
		payload, err := wire.ReadFrame(conn)
		if err != nil {
			return // peer disconnected or timed out; nothing more to log, not fatal
		}
		req, err := wire.DecodeRequest(payload)
		if err != nil {
			dlog.Errorf(ctx, "rpc: decode request: %v", err)
			return
		}

		rep := s.dispatchOne(ctx, req)

		replyPayload, err := wire.EncodeReply(rep)
		if err != nil {
			dlog.Errorf(ctx, "rpc: encode reply: %v", err)
			return
		}
		if err := wire.WriteFrame(conn, replyPayload); err != nil {
			dlog.Errorf(ctx, "rpc: write reply: %v", err)
			return
		}
	}
}

func (s *Server) dispatchOne(ctx context.Context, req wire.Request) wire.Reply {
	handler, ok := s.dispatch[req.Method]
	if !ok {
		return wire.Reply{Status: 1, Body: "Unknown Request: '" + req.Method + "'"}
	}

	result, err := func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("internal error: %v", r)
			}
		}()
		return handler(ctx, req.Args, req.Kwargs)
	}()
	if err != nil {
		dlog.Errorf(ctx, "rpc: %s failed: %v", req.Method, err)
		return wire.Reply{Status: 1, Body: err.Error()}
	}
	return wire.Reply{Status: 0, Body: result}
}
