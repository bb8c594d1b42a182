package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	// DocID 只接收该文档的事件，空表示全部
	DocID  string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("SSE client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)),
	)
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("SSE client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends an event to every client subscribed to docID
func (h *Hub) broadcast(docID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.DocID != "" && client.DocID != docID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("SSE client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

// BOMUpdate bom_update 事件内容
type BOMUpdate struct {
	DocID     string  `json:"doc_id"`
	Key       string  `json:"key,omitempty"`
	Action    string  `json:"action"`
	Revision  int     `json:"revision"`
	TotalCost float64 `json:"total_cost"`
}

// PublishBOMUpdate 广播文档变更
func (h *Hub) PublishBOMUpdate(update BOMUpdate) {
	data, _ := json.Marshal(update)
	h.broadcast(update.DocID, Event{
		EventType: "bom_update",
		Data:      string(data),
	})
	h.logger.Debug("Published bom_update",
		zap.String("doc_id", update.DocID),
		zap.String("action", update.Action),
		zap.Int("revision", update.Revision),
	)
}
