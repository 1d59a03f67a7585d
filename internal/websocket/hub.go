package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Hub maintains the set of active front-end clients and pushes state-change
// events to them. Every event is global: the UI is a single surface, so
// there is no per-topic routing.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for all connected clients.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 32),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow client: drop it rather than stall the loop.
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Notify marshals an event and queues it for broadcast without blocking the
// caller. Events lost because nobody is listening are fine; the API serves
// the authoritative state on demand.
func (h *Hub) Notify(action string, payload any) {
	data, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode hub event")
		return
	}
	select {
	case h.Broadcast <- data:
	default:
	}
}
