// Package ws streams submission states to websocket clients as protobuf
// binary frames.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS layer in front of the hub.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Encode wraps a JSON payload as {"channel": channel, "payload": {...}} and
// marshals it as a google.protobuf.Struct.
func Encode(channel string, payload []byte) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("ws: decode payload: %w", err)
	}
	st, err := structpb.NewStruct(map[string]any{
		"channel": channel,
		"payload": body,
	})
	if err != nil {
		return nil, fmt.Errorf("ws: build struct: %w", err)
	}
	return proto.Marshal(st)
}

// Decode is the inverse of Encode.
func Decode(frame []byte) (channel string, payload map[string]any, err error) {
	var st structpb.Struct
	if err := proto.Unmarshal(frame, &st); err != nil {
		return "", nil, fmt.Errorf("ws: unmarshal frame: %w", err)
	}
	m := st.AsMap()
	channel, _ = m["channel"].(string)
	payload, _ = m["payload"].(map[string]any)
	return channel, payload, nil
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub relays the submission channel of a signal bus to every connected
// client. New clients first receive the current state.
type Hub struct {
	bus      domain.SignalBus
	snapshot func() domain.StateSignal
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]bool

	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

// NewHub creates a hub. snapshot returns the state sent on connect.
func NewHub(bus domain.SignalBus, snapshot func() domain.StateSignal, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		bus:        bus,
		snapshot:   snapshot,
		logger:     logger.With(slog.String("component", "ws_hub")),
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run subscribes to the bus and serves clients until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	msgs, err := h.bus.Subscribe(ctx, domain.SubmissionChannel)
	if err != nil {
		return fmt.Errorf("ws: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case payload, ok := <-msgs:
			if !ok {
				msgs = nil
				h.logger.Warn("ws: bus subscription closed")
				continue
			}
			frame, err := Encode(domain.SubmissionChannel, payload)
			if err != nil {
				h.logger.Warn("ws: dropping undecodable signal", slog.Any("error", err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.Any("error", err))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.sendSnapshot()

	go c.writePump()
	go c.readPump()
}

func (c *client) sendSnapshot() {
	if c.hub.snapshot == nil {
		return
	}
	payload, err := json.Marshal(c.hub.snapshot())
	if err != nil {
		return
	}
	frame, err := Encode(domain.SubmissionChannel, payload)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// readPump only keeps the connection alive; clients do not send commands.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
