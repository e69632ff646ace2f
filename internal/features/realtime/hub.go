package realtime

import (
	"sync"

	"go-marketplace/internal/common/models"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// client wraps a websocket connection with a write lock; fiber websocket
// connections do not allow concurrent writes.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub fans events out to websocket subscribers, grouped by business.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   map[string]map[*client]struct{}{},
	}
}

func (h *Hub) subscribe(businessID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[businessID] == nil {
		h.subs[businessID] = map[*client]struct{}{}
	}
	h.subs[businessID][c] = struct{}{}
}

func (h *Hub) unsubscribe(businessID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.subs[businessID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.subs, businessID)
		}
	}
}

// PublishToBusiness sends the event to every subscriber of the business.
// Dead connections are dropped on write failure.
func (h *Hub) PublishToBusiness(businessID string, event models.EventPayload) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[businessID]))
	for c := range h.subs[businessID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(event); err != nil {
			h.logger.Debug("dropping websocket subscriber",
				zap.String("business_id", businessID),
				zap.Error(err))
			h.unsubscribe(businessID, c)
			c.conn.Close()
		}
	}
}

// SubscriberCount reports active connections for a business.
func (h *Hub) SubscriberCount(businessID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[businessID])
}
