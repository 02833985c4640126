// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one connected websocket consumer
type Client struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn    *websocket.Conn
	send    chan []byte
	dropped atomic.Uint64
}

func newClient(conn *websocket.Conn, remoteAddr string, buffer int) *Client {
	return &Client{
		ID:          uuid.New().String(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, buffer),
	}
}

// Dropped returns how many frames this client missed because it was slow
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Hub tracks clients and fans frames out to them. A slow client loses
// frames; it never holds up the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
	logger  *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client. It returns false once the hub is closed.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.ID] = c
	h.logger.Info("Relay client connected",
		zap.String("client_id", c.ID),
		zap.String("remote_addr", c.RemoteAddr),
	)
	return true
}

// Unregister removes a client and closes its send queue
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
		h.logger.Info("Relay client disconnected",
			zap.String("client_id", c.ID),
			zap.Uint64("dropped", c.Dropped()),
		)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes f once and queues it for every client
func (h *Hub) Broadcast(f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			c.dropped.Add(1)
			h.logger.Debug("Relay client queue full, frame dropped", zap.String("client_id", c.ID))
		}
	}
	return nil
}

// Close unregisters every client; their writers send a close message and exit
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
