package server

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/metrics"
)

// changeEvent is the payload pushed to agents when the reminder set
// changes. The agent refreshes its cache on receipt rather than trying
// to apply a delta.
type changeEvent struct {
	Event string `json:"event"`
}

// Hub tracks connected change-feed clients and fans events out to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.IncrementWSClients()
	h.logger.Debug("Change feed client connected", zap.Int("clients", n))
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		metrics.DecrementWSClients()
	}
	h.mu.Unlock()
}

// BroadcastRemindersChanged tells every connected agent to refresh its
// reminder cache. Clients that fail the write are dropped; they will
// reconnect and resync on their own.
func (h *Hub) BroadcastRemindersChanged() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(changeEvent{Event: "reminders_changed"}); err != nil {
			h.logger.Debug("Dropping unresponsive change feed client", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
			metrics.DecrementWSClients()
		}
	}
}

// CloseAll disconnects every client, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
		metrics.DecrementWSClients()
	}
}

// handleChangeFeed upgrades /ws requests and parks them in the hub. The
// read loop exists only to notice disconnects; clients never send
// meaningful data.
func (s *Server) handleChangeFeed() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		s.hub.register(conn)
		defer func() {
			s.hub.unregister(conn)
			conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
