package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect registers an in-memory client with no underlying socket; tests
// read emitted frames straight off its send channel.
func connect(t *testing.T, g *Gateway, userID uuid.UUID) *Client {
	t.Helper()
	client := newClient(g, nil, userID)
	require.True(t, g.register(client))
	return client
}

func pending(c *Client) int {
	return len(c.send)
}

func nextFrame(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var event struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &event))
		return Event{Event: event.Event, Data: event.Data}
	default:
		t.Fatal("no frame pending")
		return Event{}
	}
}

func TestEmitToUsers(t *testing.T) {
	t.Run("reaches every device of a user", func(t *testing.T) {
		g := NewGateway()
		g.Init()
		userID := uuid.New()
		phone := connect(t, g, userID)
		laptop := connect(t, g, userID)

		g.EmitToUsers("conversation:new", map[string]string{"hello": "world"}, []uuid.UUID{userID})

		assert.Equal(t, 1, pending(phone))
		assert.Equal(t, 1, pending(laptop))
		frame := nextFrame(t, phone)
		assert.Equal(t, "conversation:new", frame.Event)
	})

	t.Run("duplicate target ids deliver once", func(t *testing.T) {
		g := NewGateway()
		g.Init()
		userID := uuid.New()
		client := connect(t, g, userID)

		g.EmitToUsers("message:new", nil, []uuid.UUID{userID, userID, userID})

		assert.Equal(t, 1, pending(client))
	})

	t.Run("unconnected users are skipped silently", func(t *testing.T) {
		g := NewGateway()
		g.Init()
		client := connect(t, g, uuid.New())

		g.EmitToUsers("message:new", nil, []uuid.UUID{uuid.New()})

		assert.Zero(t, pending(client))
	})
}

func TestRooms(t *testing.T) {
	t.Run("only members receive room events", func(t *testing.T) {
		g := NewGateway()
		g.Init()
		conversationID := uuid.New()
		member := connect(t, g, uuid.New())
		outsider := connect(t, g, uuid.New())
		g.joinRoom(member, conversationID)

		g.EmitToRoom(conversationID, "typing:start", nil)

		assert.Equal(t, 1, pending(member))
		assert.Zero(t, pending(outsider))
	})

	t.Run("leaving stops delivery", func(t *testing.T) {
		g := NewGateway()
		g.Init()
		conversationID := uuid.New()
		client := connect(t, g, uuid.New())
		g.joinRoom(client, conversationID)
		g.leaveRoom(client, conversationID)

		g.EmitToRoom(conversationID, "message:new", nil)

		assert.Zero(t, pending(client))
	})

	t.Run("origin exclusion keeps typing events one-way", func(t *testing.T) {
		g := NewGateway()
		g.Init()
		conversationID := uuid.New()
		typer := connect(t, g, uuid.New())
		watcher := connect(t, g, uuid.New())
		g.joinRoom(typer, conversationID)
		g.joinRoom(watcher, conversationID)

		g.emitToRoom(conversationID, "typing:start", nil, typer)

		assert.Zero(t, pending(typer))
		assert.Equal(t, 1, pending(watcher))
	})

	t.Run("unregister clears room memberships", func(t *testing.T) {
		g := NewGateway()
		g.Init()
		conversationID := uuid.New()
		client := connect(t, g, uuid.New())
		g.joinRoom(client, conversationID)

		g.unregister(client)
		g.EmitToRoom(conversationID, "message:new", nil)

		g.mu.RLock()
		_, exists := g.rooms[conversationID]
		g.mu.RUnlock()
		assert.False(t, exists)
	})
}

func TestShutdown(t *testing.T) {
	g := NewGateway()
	g.Init()
	userID := uuid.New()
	client := connect(t, g, userID)

	g.Shutdown()

	t.Run("new registrations are refused", func(t *testing.T) {
		assert.False(t, g.register(newClient(g, nil, uuid.New())))
	})

	t.Run("emits become no-ops", func(t *testing.T) {
		g.EmitToUsers("message:new", nil, []uuid.UUID{userID})
		g.EmitToRoom(uuid.New(), "message:new", nil)
		_, open := <-client.send
		assert.False(t, open)
	})

	t.Run("second shutdown is harmless", func(t *testing.T) {
		g.Shutdown()
	})
}

func TestEventEnvelope(t *testing.T) {
	g := NewGateway()
	g.Init()
	userID := uuid.New()
	client := connect(t, g, userID)

	g.EmitToUsers("notification:new", map[string]interface{}{"id": "n1"}, []uuid.UUID{userID})

	raw := <-client.send
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Contains(t, envelope, "event")
	assert.Contains(t, envelope, "data")
}
