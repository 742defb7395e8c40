package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// StreamItem is one element of a FrontendClient.GetMany stream: either a
// decoded value or a terminal error.
type StreamItem struct {
	Data json.RawMessage
	Err  error
}

// FrontendClient is Pattern B: the server calls the browser (spec
// §4.2). It tracks in-flight requests by id across two maps — one-shot
// (GetOne) and streaming (GetMany) — exactly mirroring
// RequestTracker's `ok_one`/`ok_many` maps in
// original_source/src/server/routes.rs.
type FrontendClient struct {
	alloc IDAllocator

	mu        sync.Mutex
	oneShot   map[uint32]chan Envelope
	streaming map[uint32]chan Envelope

	outbound chan Envelope
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewFrontendClient builds an idle FrontendClient. Call ServeWS to
// attach the browser connection that actually carries its traffic.
func NewFrontendClient(logger *slog.Logger) *FrontendClient {
	return &FrontendClient{
		oneShot:   make(map[uint32]chan Envelope),
		streaming: make(map[uint32]chan Envelope),
		outbound:  make(chan Envelope, 100),
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Notify sends an unsolicited (id-less) message to the browser, used for
// server-initiated notifications the browser did not request (spec
// §4.2's FeRequest variants Notify/NotifyError).
func (c *FrontendClient) Notify(ctx context.Context, payload any) error {
	content, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	env := Envelope{Type: TypeRequest, Content: content}
	select {
	case c.outbound <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetOne sends req to the browser and blocks for its single OkOne reply.
//
// There is no timeout: a browser that never replies blocks the caller
// forever unless ctx is canceled, matching the original's documented
// behavior ("NOTE: there is no timeout on these").
func (c *FrontendClient) GetOne(ctx context.Context, req any) (json.RawMessage, error) {
	id := c.alloc.Next()
	ch := make(chan Envelope, 1)

	c.mu.Lock()
	c.oneShot[id] = ch
	c.mu.Unlock()

	env, err := requestEnvelope(id, req)
	if err != nil {
		c.removeOneShot(id)
		return nil, err
	}

	select {
	case c.outbound <- env:
	case <-ctx.Done():
		c.removeOneShot(id)
		return nil, ctx.Err()
	}

	select {
	case reply := <-ch:
		if reply.Type == TypeErr {
			var msg ErrorMessage
			if err := json.Unmarshal(reply.Content, &msg); err != nil {
				return nil, fmt.Errorf("decoding error reply: %w", err)
			}
			return nil, &msg
		}
		return reply.Content, nil
	case <-ctx.Done():
		c.removeOneShot(id)
		return nil, ctx.Err()
	}
}

// GetMany sends req to the browser and returns a channel of streamed
// results, closed once the browser sends `done: true` or an error.
func (c *FrontendClient) GetMany(ctx context.Context, req any) (<-chan StreamItem, error) {
	id := c.alloc.Next()
	raw := make(chan Envelope, 20)

	c.mu.Lock()
	c.streaming[id] = raw
	c.mu.Unlock()

	env, err := requestEnvelope(id, req)
	if err != nil {
		c.removeStreaming(id)
		return nil, err
	}

	select {
	case c.outbound <- env:
	case <-ctx.Done():
		c.removeStreaming(id)
		return nil, ctx.Err()
	}

	out := make(chan StreamItem, 20)
	go func() {
		defer close(out)
		for {
			select {
			case env, ok := <-raw:
				if !ok {
					return
				}
				switch env.Type {
				case TypeErr:
					var msg ErrorMessage
					if err := json.Unmarshal(env.Content, &msg); err != nil {
						out <- StreamItem{Err: fmt.Errorf("decoding error reply: %w", err)}
					} else {
						out <- StreamItem{Err: &msg}
					}
					return
				case TypeOkMany:
					var many ManyContent
					if err := json.Unmarshal(env.Content, &many); err != nil {
						out <- StreamItem{Err: fmt.Errorf("decoding stream item: %w", err)}
						return
					}
					out <- StreamItem{Data: many.Data}
					if many.Done {
						return
					}
				default:
					out <- StreamItem{Err: fmt.Errorf("unexpected message type %q for streaming request", env.Type)}
					return
				}
			case <-ctx.Done():
				out <- StreamItem{Err: ctx.Err()}
				return
			}
		}
	}()
	return out, nil
}

func (c *FrontendClient) removeOneShot(id uint32) {
	c.mu.Lock()
	delete(c.oneShot, id)
	c.mu.Unlock()
}

func (c *FrontendClient) removeStreaming(id uint32) {
	c.mu.Lock()
	delete(c.streaming, id)
	c.mu.Unlock()
}

// ServeWS upgrades the connection and runs the writer/reader loop that
// carries this FrontendClient's traffic for the lifetime of the browser
// tab's connection.
func (c *FrontendClient) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("frontend client upgrade failed", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for env := range c.outbound {
			if err := conn.WriteJSON(env); err != nil {
				c.logger.Warn("frontend client write failed", "error", err)
				return
			}
		}
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		c.handleInbound(env)
	}
	<-writerDone
}

// ServeNewID answers GET .../new_id with the next allocator value,
// mirroring MessageServer.ServeNewID for the sibling FrontendClient
// routes (spec §4.2: the id allocator is shared between the WS route
// and this GET route).
func (c *FrontendClient) ServeNewID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(c.alloc.Next())
}

func (c *FrontendClient) handleInbound(env Envelope) {
	if env.ID == nil {
		if env.Type == TypeErr {
			c.logger.Info("browser reported an error with no correlated request", "content", string(env.Content))
			return
		}
		c.logger.Warn("browser sent a message without an id", "type", env.Type)
		return
	}
	id := *env.ID

	switch env.Type {
	case TypeOkMany:
		c.mu.Lock()
		ch, ok := c.streaming[id]
		if ok {
			var many ManyContent
			if err := json.Unmarshal(env.Content, &many); err == nil && many.Done {
				delete(c.streaming, id)
			}
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("OkMany for unknown or already-closed request", "id", id)
			return
		}
		ch <- env
	case TypeOkOne:
		c.mu.Lock()
		ch, ok := c.oneShot[id]
		delete(c.oneShot, id)
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("OkOne for unknown request", "id", id)
			return
		}
		ch <- env
	case TypeErr:
		c.mu.Lock()
		if ch, ok := c.oneShot[id]; ok {
			delete(c.oneShot, id)
			c.mu.Unlock()
			ch <- env
			return
		}
		ch, ok := c.streaming[id]
		if ok {
			delete(c.streaming, id)
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("Err for unknown request", "id", id)
			return
		}
		ch <- env
	case TypeRequest:
		// This WS does not support requests originating from the
		// browser: surface the protocol violation back to whichever
		// call is still waiting on this id, same as the original.
		c.mu.Lock()
		if ch, ok := c.oneShot[id]; ok {
			delete(c.oneShot, id)
			c.mu.Unlock()
			ch <- errEnvelope(env.ID, fmt.Errorf("this WS does not support requests from the browser: %s", env.Content))
			return
		}
		ch, ok := c.streaming[id]
		if ok {
			delete(c.streaming, id)
		}
		c.mu.Unlock()
		if ok {
			ch <- errEnvelope(env.ID, fmt.Errorf("this WS does not support requests from the browser: %s", env.Content))
		}
	}
}
