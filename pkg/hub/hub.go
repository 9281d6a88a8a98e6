package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-yolocapture/pkg/protocol"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*subscriber]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *subscriber

	// Unregister requests from clients
	unregister chan *subscriber

	// Closed when Run returns
	quit chan struct{}

	// Guards clients for read-only access from outside Run
	mu sync.RWMutex

	running atomic.Bool
	dropped atomic.Uint64
}

// New creates a new Hub
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*subscriber]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and blocks until ctx is done, at which
// point every subscriber queue is closed.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			close(h.quit)
			h.mu.Lock()
			for client := range h.clients {
				close(client.out)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.out)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.out <- message:
				default:
					// Queue full: drop the subscriber
					close(client.out)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastProtocol encodes and broadcasts a protocol message
func (h *Hub) BroadcastProtocol(msg *protocol.Message) error {
	m, err := FromProtocol(msg)
	if err != nil {
		return err
	}
	h.Broadcast(m)
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., JPEG images)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded because the queue was full
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub loop is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
