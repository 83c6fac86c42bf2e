package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// Client is one websocket connection. A user may hold many clients at
// once (tabs, devices); each joins the same personal channel.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	userID  uuid.UUID
	joined  map[uuid.UUID]struct{}
	once    sync.Once
}

type intentEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type intentPayload struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	Content        string      `json:"content"`
	MessageIDs     []uuid.UUID `json:"messageIds"`
}

func newClient(g *Gateway, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		userID:  userID,
		joined:  make(map[uuid.UUID]struct{}),
	}
}

// HandleConnection registers an authenticated connection on the user's
// personal channel and runs its pumps until disconnect.
func (g *Gateway) HandleConnection(conn *websocket.Conn, userID uuid.UUID) {
	client := newClient(g, conn, userID)
	if !g.register(client) {
		conn.Close()
		return
	}
	go client.writePump()
	client.readPump()
}

// enqueue drops the event when the client's buffer is full; a slow reader
// must not stall fan-out to everyone else.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("dropping event for slow client of user %s", c.userID)
	}
}

func (c *Client) closeOnce() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) readPump() {
	defer c.gateway.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		c.handleIntent(raw)
	}
}

func (c *Client) handleIntent(raw []byte) {
	var envelope intentEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("discarding malformed socket frame: %v", err)
		return
	}

	var payload intentPayload
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			log.Printf("discarding malformed %s payload: %v", envelope.Event, err)
			return
		}
	}
	if payload.ConversationID == uuid.Nil {
		return
	}

	switch envelope.Event {
	case "conversation:join":
		c.gateway.joinRoom(c, payload.ConversationID)
	case "conversation:leave":
		c.gateway.leaveRoom(c, payload.ConversationID)
	case "message:send":
		c.dispatch(envelope.Event, func(h IntentHandler) error {
			return h.HandleSendMessage(payload.ConversationID, c.userID, payload.Content)
		})
	case "message:delivered":
		c.dispatch(envelope.Event, func(h IntentHandler) error {
			return h.HandleMarkDelivered(payload.ConversationID, payload.MessageIDs, c.userID)
		})
	case "message:read":
		c.dispatch(envelope.Event, func(h IntentHandler) error {
			return h.HandleMarkRead(payload.ConversationID, payload.MessageIDs, c.userID)
		})
	case "typing:start", "typing:stop":
		// Room-only, never echoed back to the origin connection.
		c.gateway.emitToRoom(payload.ConversationID, envelope.Event, map[string]interface{}{
			"conversationId": payload.ConversationID,
			"userId":         c.userID,
		}, c)
	default:
		log.Printf("unknown socket intent %q", envelope.Event)
	}
}

func (c *Client) dispatch(event string, fn func(IntentHandler) error) {
	handler := c.gateway.handler
	if handler == nil {
		return
	}
	if err := fn(handler); err != nil {
		log.Printf("socket %s error: %v", event, err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
