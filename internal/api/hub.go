package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/bus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Frame is the envelope delivered to WebSocket clients.
type Frame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// mintPayload extracts the mint field shared by all broadcast payloads.
type mintPayload struct {
	Mint string `json:"mint"`
}

// Hub fans bus messages out to connected WebSocket clients. Clients
// whose send buffer fills are disconnected rather than slowing the
// broadcast.
type Hub struct {
	sub    bus.Subscriber
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// mint narrows the stream to one token. Empty receives everything.
	mint string
}

// NewHub creates a hub over a bus subscriber.
func NewHub(sub bus.Subscriber, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sub:     sub,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Run subscribes to the broadcast channels and fans messages out until
// the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	msgs, err := h.sub.Subscribe(ctx,
		bus.ChannelTrades, bus.ChannelNewTokens, bus.ChannelCompletions)
	if err != nil {
		return err
	}

	h.logger.Info("websocket hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				h.closeAll()
				return nil
			}
			h.broadcast(m)
		}
	}
}

// broadcast frames one bus message and delivers it to every matching
// client.
func (h *Hub) broadcast(m bus.Message) {
	frame, err := json.Marshal(Frame{Channel: m.Channel, Data: m.Payload})
	if err != nil {
		h.logger.Error("frame marshal failed", zap.Error(err))
		return
	}

	var p mintPayload
	_ = json.Unmarshal(m.Payload, &p)

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		if c.mint != "" && c.mint != p.Mint {
			continue
		}
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client",
			zap.String("remote", c.conn.RemoteAddr().String()))
	}
}

// ServeWS upgrades the request and registers the client. An empty mint
// subscribes to the full stream.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, mint string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		mint: mint,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.String("mint", mint),
		zap.Int("clients", n))

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// writePump drains the client's send buffer onto the socket and keeps
// the connection alive with pings. It owns all writes.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
