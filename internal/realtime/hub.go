// Package realtime pushes wedding changes (RSVPs, invitation edits) to connected admin
// dashboards over websockets, fanned out across instances through Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub maintains wedding_id -> set of connections and broadcasts messages.
type Hub struct {
	// weddingID -> map[clientID]*Client
	weddings map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per wedding
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishWeddingEvent(ctx context.Context, weddingID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to wedding channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeWedding(weddingID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new websocket hub. Without Redis, broadcasts stay on this instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		weddings: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a wedding room. Starts the Redis subscription for the wedding
// on its first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.weddings[c.WeddingID] == nil {
		h.weddings[c.WeddingID] = make(map[string]*Client)
		if h.redisSub != nil {
			weddingID := c.WeddingID
			cancel, err := h.redisSub.SubscribeWedding(weddingID, func(event string, payload []byte) {
				h.Broadcast(weddingID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("live feed subscribe failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
			} else {
				h.subs[weddingID] = cancel
			}
		}
	}
	h.weddings[c.WeddingID][c.ID] = c
	h.logger.Debug("client joined live feed", zap.String("client_id", c.ID), zap.String("wedding_id", c.WeddingID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.weddings[c.WeddingID]
	if !ok {
		return
	}
	delete(m, c.ID)
	if len(m) == 0 {
		delete(h.weddings, c.WeddingID)
		if cancel, ok := h.subs[c.WeddingID]; ok {
			cancel()
			delete(h.subs, c.WeddingID)
		}
	}
	h.logger.Debug("client left live feed", zap.String("client_id", c.ID), zap.String("wedding_id", c.WeddingID.String()))
}

// Broadcast sends a message to all local clients of a wedding.
func (h *Hub) Broadcast(weddingID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.weddings[weddingID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every dashboard of the wedding on every instance. With Redis
// the subscriber callback does the delivery, including on this instance, so it happens once.
func (h *Hub) Publish(ctx context.Context, weddingID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(weddingID, event, payload)
		return
	}
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("live feed payload not serialisable", zap.Error(err), zap.String("event", event))
			return
		}
	}
	if err := h.redis.PublishWeddingEvent(ctx, weddingID, event, data); err != nil {
		h.logger.Warn("live feed publish failed, delivering locally", zap.Error(err), zap.String("event", event))
		h.Broadcast(weddingID, event, json.RawMessage(data))
	}
}

// ViewerCount returns the number of connected dashboards for a wedding on this instance.
func (h *Hub) ViewerCount(weddingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.weddings[weddingID])
}
