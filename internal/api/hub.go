package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/control"
	"github.com/bryanchriswhite/livejar/internal/events"
	"github.com/bryanchriswhite/livejar/internal/logger"
	"github.com/bryanchriswhite/livejar/internal/window"
)

// Push channel names
const (
	ChannelSettings    = "settings"
	ChannelWindowState = "window:state"
	ChannelWindowAudio = "window:audio"

	// main window only
	ChannelWindowLifecycle = "window:lifecycle"
	ChannelAppState        = "app:state"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Lifecycle reports a stream window coming up or going away
type Lifecycle struct {
	ID   int  `json:"id"`
	Open bool `json:"open"`
}

// Push is a message the core sends to an attached window on its own
type Push struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// Frame is an inbound command frame
type Frame struct {
	ID      int             `json:"id"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Reply answers one Frame
type Reply struct {
	ID     int               `json:"id"`
	Result any               `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type client struct {
	id       uuid.UUID
	conn     *websocket.Conn
	windowID *int
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *client) target() string {
	if c.windowID == nil {
		return "main"
	}
	return strconv.Itoa(*c.windowID)
}

// offer queues data without blocking. It reports false when the buffer is full.
func (c *client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub attaches windows over websocket. On attach a window first receives the
// current settings and its state, then every later push addressed to it.
type Hub struct {
	loop       *control.Loop
	dispatcher *Dispatcher
	windows    *window.Manager
	bus        *events.Bus
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	unsubs  []func()
	log     *zerolog.Logger
}

// NewHub creates a hub. Call Start to begin forwarding bus events.
func NewHub(loop *control.Loop, dispatcher *Dispatcher, windows *window.Manager, bus *events.Bus) *Hub {
	return &Hub{
		loop:       loop,
		dispatcher: dispatcher,
		windows:    windows,
		bus:        bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // windows load from file:// and localhost
			},
		},
		clients: make(map[uuid.UUID]*client),
		log:     logger.WithComponent("hub"),
	}
}

// Start subscribes to the bus
func (h *Hub) Start() {
	h.unsubs = append(h.unsubs,
		h.bus.Subscribe(func(e events.SettingsChangedEvent) {
			h.broadcast(func(*client) bool { return true }, Push{Channel: ChannelSettings, Data: e.Settings})
		}),
		h.bus.Subscribe(func(e events.WindowStateChangedEvent) {
			push := Push{Channel: ChannelWindowState, Data: e.Main}
			if e.WindowID != nil {
				push.Data = e.Stream
			}
			h.broadcast(func(c *client) bool { return sameWindow(c.windowID, e.WindowID) }, push)
		}),
		h.bus.Subscribe(func(e events.AudioMutedEvent) {
			id := e.WindowID
			h.broadcast(func(c *client) bool { return sameWindow(c.windowID, &id) },
				Push{Channel: ChannelWindowAudio, Data: map[string]bool{"muted": e.Muted}})
		}),
		h.bus.Subscribe(func(e events.WindowOpenedEvent) {
			h.broadcast(isMain, Push{Channel: ChannelWindowLifecycle, Data: Lifecycle{ID: e.WindowID, Open: true}})
		}),
		h.bus.Subscribe(func(e events.WindowClosedEvent) {
			h.broadcast(isMain, Push{Channel: ChannelWindowLifecycle, Data: Lifecycle{ID: e.WindowID}})
		}),
		h.dispatcher.core.Settings.OnAppStateChange(func(s config.AppState) {
			h.broadcast(isMain, Push{Channel: ChannelAppState, Data: s})
		}),
	)
}

func isMain(c *client) bool {
	return c.windowID == nil
}

// Stop unsubscribes and disconnects every client
func (h *Hub) Stop() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// Len returns the number of attached clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func sameWindow(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ServeHTTP handles GET /api/ws?window=<id>|main
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var windowID *int
	if v := r.URL.Query().Get("window"); v != "" && v != "main" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 {
			http.Error(w, "window must be a non-negative id or main", http.StatusBadRequest)
			return
		}
		windowID = &id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	c := &client{
		id:       uuid.New(),
		conn:     conn,
		windowID: windowID,
		send:     make(chan []byte, sendBuffer),
	}
	go h.writePump(c)

	// pull and subscribe in one loop turn so no change falls in between
	err = h.loop.Do(r.Context(), func() {
		h.enqueue(c, Push{Channel: ChannelSettings, Data: h.dispatcher.core.Settings.Get()})
		h.enqueue(c, Push{Channel: ChannelWindowState, Data: h.state(windowID)})
		h.mu.Lock()
		h.clients[c.id] = c
		h.mu.Unlock()
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to attach client")
		c.close()
		return
	}

	h.log.Info().Str("client", c.id.String()).Str("window", c.target()).Msg("Client attached")
	h.readPump(c)
}

func (h *Hub) state(id *int) any {
	if id == nil {
		return h.windows.MainState()
	}
	if st, ok := h.windows.StreamState(*id); ok {
		return st
	}
	return nil
}

func (h *Hub) readPump(c *client) {
	defer h.detach(c)

	caller := Caller{Attached: true, WindowID: c.windowID}
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("client", c.id.String()).Msg("WebSocket read error")
			}
			return
		}

		result, err := h.dispatcher.Dispatch(context.Background(), caller, f.Command, f.Args)
		reply := Reply{ID: f.ID, Result: result}
		if err != nil {
			reply.Result = nil
			reply.Error = err.Error()
			if fields, ok := fieldErrors(err); ok {
				reply.Fields = fields
			}
		}
		h.enqueue(c, reply)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug().Err(err).Str("client", c.id.String()).Msg("WebSocket write error")
			// unblock the reader, then drain until detach closes send
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	h.log.Info().Str("client", c.id.String()).Str("window", c.target()).Msg("Client detached")
}

func (h *Hub) broadcast(match func(*client) bool, msg any) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, msg)
	}
}

// enqueue queues msg for c, dropping the client if it cannot keep up
func (h *Hub) enqueue(c *client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode message")
		return
	}
	if !c.offer(data) {
		h.log.Warn().Str("client", c.id.String()).Msg("Client too slow, disconnecting")
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		c.close()
	}
}
