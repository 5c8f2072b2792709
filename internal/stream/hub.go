package stream

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/TheVenters/VentApp/internal/store"
)

// Hub fans a user's store changes out to their open websockets. Cross
// instance delivery is the realtime bus's job; by the time a change
// reaches a store it is already local, so the hub never touches redis.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

type Client struct {
	UserID string
	Send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: map[string]map[*Client]struct{}{},
	}
}

func (h *Hub) Register(userID string) *Client {
	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[client.UserID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	close(client.Send)
}

// Forward pushes one store change to every websocket userID has open.
// Slow consumers drop messages rather than stall the store listener.
func (h *Hub) Forward(userID string, change store.Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Printf("stream: marshal change: %v", err)
		return
	}
	h.Broadcast(userID, payload)
}

func (h *Hub) Broadcast(userID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[userID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}
