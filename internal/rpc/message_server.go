package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// HandlerFunc answers one client-originated Request with its reply
// payload (marshaled by the caller into the returned json.RawMessage).
// alloc is the same per-route id allocator GET /serve/{path}/new_id
// draws from, for handlers that need to mint ids of their own (spec
// §4.2: "id allocator, shared between the WS route and a GET route that
// hands out ids for out-of-band use").
type HandlerFunc func(ctx context.Context, alloc *IDAllocator, raw json.RawMessage) (json.RawMessage, error)

// IDAllocator hands out monotonically increasing u32 ids, matching the
// original's `AtomicU32` counter shared across a route's WS upgrades and
// its `new_id` endpoint.
type IDAllocator struct {
	next uint32
}

// Next returns the next id and advances the counter.
func (a *IDAllocator) Next() uint32 {
	return atomic.AddUint32(&a.next, 1) - 1
}

// MessageServer is Pattern A: the browser calls the server. The router
// mounts one MessageServer, for `/serve/db`; `/serve/yti` and
// `/serve/fec` use FrontendClient instead. ServeWS upgrades the connection and dispatches
// every inbound {id, Request} envelope to handler, writing back the
// matching OkOne/Err reply. ServeNewID answers the sibling
// `/serve/{name}/new_id` GET route.
type MessageServer struct {
	handler  HandlerFunc
	alloc    IDAllocator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewMessageServer builds a MessageServer dispatching requests to handler.
func NewMessageServer(handler HandlerFunc, logger *slog.Logger) *MessageServer {
	return &MessageServer{
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeNewID answers GET .../new_id with the next allocator value.
func (s *MessageServer) ServeNewID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.alloc.Next())
}

// ServeWS upgrades the connection and runs its read/write loop until the
// client disconnects.
func (s *MessageServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("message server upgrade failed", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	ctx := r.Context()
	outbound := make(chan Envelope, 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for env := range outbound {
			if err := conn.WriteJSON(env); err != nil {
				s.logger.Warn("message server write failed", "error", err)
				return
			}
		}
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		go s.handleOne(ctx, env, outbound)
	}

	close(outbound)
	<-done
}

func (s *MessageServer) handleOne(ctx context.Context, env Envelope, outbound chan<- Envelope) {
	if env.ID == nil {
		if env.Type == TypeErr {
			s.logger.Info("client reported an error with no correlated request", "content", string(env.Content))
			return
		}
		s.logger.Warn("client sent a message without an id", "type", env.Type)
		return
	}
	if env.Type != TypeRequest {
		s.logger.Warn("this route only accepts Request messages from the client", "type", env.Type, "id", *env.ID)
		return
	}

	reply, err := s.handler(ctx, &s.alloc, env.Content)
	var out Envelope
	if err != nil {
		out = errEnvelope(env.ID, err)
	} else {
		out, err = okOneEnvelope(*env.ID, json.RawMessage(reply))
		if err != nil {
			out = errEnvelope(env.ID, fmt.Errorf("encoding reply: %w", err))
		}
	}
	outbound <- out
}
