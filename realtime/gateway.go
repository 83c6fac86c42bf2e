package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Broadcaster is the emit surface the services depend on. A nil gateway is
// legal: callers guard it and broadcasts silently no-op, since fan-out is
// always secondary to an already-committed mutation.
type Broadcaster interface {
	EmitToUsers(event string, payload interface{}, userIDs []uuid.UUID)
	EmitToRoom(conversationID uuid.UUID, event string, payload interface{})
}

// IntentHandler receives client-originated realtime intents. Implemented
// by the messaging service and injected after construction to keep the
// gateway free of store dependencies.
type IntentHandler interface {
	HandleSendMessage(conversationID, senderID uuid.UUID, content string) error
	HandleMarkDelivered(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error
	HandleMarkRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) error
}

// Event is the wire envelope for everything the gateway sends.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Gateway maintains personal channels (one per user id, joined by every
// device of that user) and conversation rooms (joined only while a client
// is viewing that thread). It is explicitly constructed and injected,
// never a package global.
type Gateway struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]map[*Client]struct{}
	rooms   map[uuid.UUID]map[*Client]struct{}
	handler IntentHandler
	closed  bool
}

func NewGateway() *Gateway {
	return &Gateway{
		users: make(map[uuid.UUID]map[*Client]struct{}),
		rooms: make(map[uuid.UUID]map[*Client]struct{}),
	}
}

func (g *Gateway) SetHandler(handler IntentHandler) {
	g.handler = handler
}

// Init readies the gateway for connections; paired with Shutdown.
func (g *Gateway) Init() {
	g.mu.Lock()
	g.closed = false
	g.mu.Unlock()
	log.Println("realtime gateway initialized")
}

// Shutdown closes every connected client channel and drops all
// memberships. Emits after shutdown are no-ops.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true

	for _, clients := range g.users {
		for client := range clients {
			client.closeOnce()
		}
	}
	g.users = make(map[uuid.UUID]map[*Client]struct{})
	g.rooms = make(map[uuid.UUID]map[*Client]struct{})
	log.Println("realtime gateway shut down")
}

// register adds a client to its personal channel in one step under the
// gateway lock, so concurrent connects never interleave partially.
func (g *Gateway) register(client *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	clients, ok := g.users[client.userID]
	if !ok {
		clients = make(map[*Client]struct{})
		g.users[client.userID] = clients
	}
	clients[client] = struct{}{}
	return true
}

func (g *Gateway) unregister(client *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if clients, ok := g.users[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(g.users, client.userID)
		}
	}
	for conversationID := range client.joined {
		if members, ok := g.rooms[conversationID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(g.rooms, conversationID)
			}
		}
	}
	client.closeOnce()
}

func (g *Gateway) joinRoom(client *Client, conversationID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	members, ok := g.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		g.rooms[conversationID] = members
	}
	members[client] = struct{}{}
	client.joined[conversationID] = struct{}{}
}

func (g *Gateway) leaveRoom(client *Client, conversationID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if members, ok := g.rooms[conversationID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(g.rooms, conversationID)
		}
	}
	delete(client.joined, conversationID)
}

func marshalEvent(event string, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("failed to marshal %s event: %v", event, err)
		return nil, false
	}
	return data, true
}

// EmitToUsers sends the event once per unique target user id, reaching
// every connected device on each user's personal channel.
func (g *Gateway) EmitToUsers(event string, payload interface{}, userIDs []uuid.UUID) {
	if len(userIDs) == 0 {
		return
	}
	data, ok := marshalEvent(event, payload)
	if !ok {
		return
	}

	seen := make(map[uuid.UUID]struct{}, len(userIDs))

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return
	}
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		for client := range g.users[userID] {
			client.enqueue(data)
		}
	}
}

// EmitToRoom reaches every device currently viewing the conversation.
func (g *Gateway) EmitToRoom(conversationID uuid.UUID, event string, payload interface{}) {
	g.emitToRoom(conversationID, event, payload, nil)
}

func (g *Gateway) emitToRoom(conversationID uuid.UUID, event string, payload interface{}, except *Client) {
	data, ok := marshalEvent(event, payload)
	if !ok {
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return
	}
	for client := range g.rooms[conversationID] {
		if client == except {
			continue
		}
		client.enqueue(data)
	}
}
