package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"pairchat/pkg/logger"
)

// Client represents a WebSocket connection client
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Manager tracks active connections and per-conversation rooms. It is the
// collaborator that observes store mutations and fans them out; push delivery
// itself lives behind it and is not part of this core.
type Manager struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				logger.Info("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				// A reconnect replaces the map entry; tearing down the old
				// connection must not evict the new one.
				if m.clients[client.UserID] == client {
					delete(m.clients, client.UserID)
				}
				for id, room := range m.rooms {
					if room[client.UserID] == client {
						delete(room, client.UserID)
						if len(room) == 0 {
							delete(m.rooms, id)
						}
					}
				}
				close(client.Send)
				m.mutex.Unlock()
				logger.Info("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) JoinConversation(conversationID string, client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, ok := m.rooms[conversationID]
	if !ok {
		room = make(map[string]*Client)
		m.rooms[conversationID] = room
	}
	room[client.UserID] = client
}

func (m *Manager) LeaveConversation(conversationID string, client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, ok := m.rooms[conversationID]; ok {
		delete(room, client.UserID)
		if len(room) == 0 {
			delete(m.rooms, conversationID)
		}
	}
}

// SendToUser sends a message to a specific user
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	client, ok := m.clients[userID]
	m.mutex.RUnlock()

	if ok {
		select {
		case client.Send <- message:
		default:
			logger.Warn("Dropping message for slow client %s", userID)
		}
	}
}

// SendToConversation broadcasts to every participant connected to the
// conversation room, optionally excluding one user (usually the sender).
func (m *Manager) SendToConversation(conversationID string, message []byte, excludeUserID string) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for userID, client := range m.rooms[conversationID] {
		if userID == excludeUserID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			logger.Warn("Dropping room message for slow client %s", userID)
		}
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager, handle func(client *Client, message []byte)) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error for %s: %v", c.UserID, err)
			}
			break
		}
		handle(c, message)
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Warn("WebSocket write error for %s: %v", c.UserID, err)
			return
		}
	}
}
