package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	// Dashboards only send pings, so inbound frames stay tiny.
	maxInbound = 1024
	sendBuffer = 64
)

// EventConnected is the first frame on every connection.
const EventConnected = "connected"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are filtered by the CORS middleware before the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSMessage is the websocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Snapshot is the payload of the connected frame.
type Snapshot struct {
	WeddingID uuid.UUID `json:"wedding_id"`
	Viewers   int       `json:"viewers"`
}

// Client is one admin dashboard watching a wedding's live feed.
type Client struct {
	ID        string
	WeddingID uuid.UUID
	UserID    uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

// ServeWs upgrades GET /weddings/:id/live. Must run after JWT and RequireWeddingAccess.
func ServeWs(hub *Hub, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		weddingID := middleware.WeddingID(c)
		var userID uuid.UUID
		if actor := middleware.ActorID(c); actor != nil {
			userID = *actor
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("live feed upgrade failed", zap.String("wedding_id", weddingID.String()), zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.NewString(),
			WeddingID: weddingID,
			UserID:    userID,
			hub:       hub,
			conn:      conn,
			send:      make(chan WSMessage, sendBuffer),
			logger:    logger.With(zap.String("wedding_id", weddingID.String()), zap.String("user_id", userID.String())),
		}
		hub.Register(client)
		client.enqueue(EventConnected, Snapshot{WeddingID: weddingID, Viewers: hub.ViewerCount(weddingID)})
		client.logger.Debug("live feed viewer joined")

		go client.writePump()
		client.readPump()
	}
}

// enqueue drops the frame when the viewer is too slow to keep up.
func (c *Client) enqueue(event string, payload interface{}) {
	msg := WSMessage{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.logger.Warn("live feed payload", zap.String("event", event), zap.Error(err))
			return
		}
		msg.Data = data
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Debug("live feed frame dropped", zap.String("event", event))
	}
}

// readPump answers application pings and watches for disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.send)
		c.logger.Debug("live feed viewer left")
	}()

	c.conn.SetReadLimit(maxInbound)
	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	c.conn.SetPongHandler(func(string) error { extend(); return nil })

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		extend()
		if msg.Event == "ping" {
			c.enqueue("pong", nil)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
