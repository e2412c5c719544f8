// Package stream exposes playback over websockets: a Hub serves local
// clients (frames out, control commands in) and a Relay pushes frames to a
// remote server.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/seatrack/gpxplayer/internal/dispatcher"
	"github.com/seatrack/gpxplayer/internal/player"
	"github.com/seatrack/gpxplayer/pkg/streaming"
)

const (
	clientSendSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
)

// HelloFunc describes the loaded session to a new client.
type HelloFunc func() streaming.HelloPayload

// Hub fans frames out to every connected client and routes client commands
// through a dispatcher.
type Hub struct {
	disp     *dispatcher.Dispatcher
	logger   dispatcher.Logger
	hello    HelloFunc
	upgrader ws.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	dropped atomic.Uint64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHello sets the payload sent to every new client.
func WithHello(f HelloFunc) HubOption {
	return func(h *Hub) { h.hello = f }
}

// WithCheckOrigin overrides the upgrader origin check. The default accepts all origins.
func WithCheckOrigin(f func(*http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = f }
}

// OriginAllowlist accepts requests without an Origin header and those whose
// origin matches one of origins exactly.
func OriginAllowlist(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// NewHub creates a hub dispatching client commands to disp.
func NewHub(disp *dispatcher.Dispatcher, logger dispatcher.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		disp:    disp,
		logger:  logger,
		clients: make(map[string]*client),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendSize),
		done: make(chan struct{}),
	}
	if !h.add(c) {
		_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	h.logger.Info("client connected", "client", c.id, "remote", r.RemoteAddr)

	if h.hello != nil {
		p := h.hello()
		p.ClientID = c.id
		if data, err := streaming.Marshal(streaming.TypeHello, "", p); err == nil {
			c.enqueue(data)
		}
	}

	go c.writePump()
	c.readLoop()

	h.remove(c)
	h.logger.Info("client disconnected", "client", c.id)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok {
		c.stop()
	}
}

// WriteFrame implements player.Sink by broadcasting the frame.
// Slow clients lose frames rather than stalling playback.
func (h *Hub) WriteFrame(_ context.Context, f player.Frame) error {
	data, err := streaming.Marshal(streaming.TypeFrame, "", f)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Broadcast queues data for every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.enqueue(data) {
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}

// handle dispatches one client message and returns the reply.
func (h *Hub) handle(c *client, raw []byte) []byte {
	var env streaming.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errorReply("", "", "invalid envelope: "+err.Error())
	}

	result, err := h.disp.Dispatch(dispatcher.Event{
		Command:  env.Type,
		Payload:  env.Payload,
		ClientID: c.id,
	})
	if err != nil {
		return errorReply(env.Type, env.ID, err.Error())
	}

	data, err := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type, ID: env.ID, Result: result})
	if err != nil {
		return errorReply(env.Type, env.ID, err.Error())
	}
	return data
}

func errorReply(forType, id, msg string) []byte {
	data, _ := json.Marshal(streaming.ErrorMessage{Type: streaming.TypeError, For: forType, ID: id, Error: msg})
	return data
}
