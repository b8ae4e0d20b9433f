package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnregisterAfterReconnectKeepsNewClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)

	oldConn := &Client{UserID: "alice", Send: make(chan []byte, 1)}
	m.Register <- oldConn
	m.JoinConversation("alice_bob", oldConn)

	newConn := &Client{UserID: "alice", Send: make(chan []byte, 1)}
	m.Register <- newConn
	m.JoinConversation("alice_bob", newConn)

	// The stale connection tears down after the reconnect already replaced it.
	m.Unregister <- oldConn

	require.Eventually(t, func() bool {
		select {
		case _, open := <-oldConn.Send:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "stale connection's channel not closed")

	m.mutex.RLock()
	assert.Same(t, newConn, m.clients["alice"])
	m.mutex.RUnlock()

	m.SendToUser("alice", []byte("direct"))
	select {
	case msg := <-newConn.Send:
		assert.Equal(t, "direct", string(msg))
	default:
		t.Fatal("reconnected client did not receive direct message")
	}

	m.SendToConversation("alice_bob", []byte("room"), "")
	select {
	case msg := <-newConn.Send:
		assert.Equal(t, "room", string(msg))
	default:
		t.Fatal("reconnected client did not receive room message")
	}
}

func TestUnregisterRemovesClientAndEmptyRooms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)

	client := &Client{UserID: "bob", Send: make(chan []byte, 1)}
	m.Register <- client
	m.JoinConversation("alice_bob", client)

	m.Unregister <- client

	require.Eventually(t, func() bool {
		select {
		case _, open := <-client.Send:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	assert.NotContains(t, m.clients, "bob")
	assert.NotContains(t, m.rooms, "alice_bob")
}
