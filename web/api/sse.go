package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEEvent is one event on the /api/events stream. Data carries the
// orchestrator event verbatim so web clients see the same transitions the
// TUI does.
type SSEEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SSEHub fans run events out to every connected event-stream client.
// All client bookkeeping happens on the Run goroutine, so no lock guards
// the map.
type SSEHub struct {
	clients    map[chan SSEEvent]bool
	broadcast  chan SSEEvent
	register   chan chan SSEEvent
	unregister chan chan SSEEvent
}

// NewSSEHub creates an event hub; call Run before broadcasting
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients:    make(map[chan SSEEvent]bool),
		broadcast:  make(chan SSEEvent),
		register:   make(chan chan SSEEvent),
		unregister: make(chan chan SSEEvent),
	}
}

// Run owns the client set until the process exits
func (h *SSEHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}

		case event := <-h.broadcast:
			for client := range h.clients {
				select {
				case client <- event:
				default:
					// A client that cannot keep up is dropped rather
					// than allowed to stall the run loop
					close(client)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Broadcast queues an event for every connected client
func (h *SSEHub) Broadcast(event SSEEvent) {
	h.broadcast <- event
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		client := make(chan SSEEvent, 8)
		s.sseHub.register <- client

		go func() {
			<-r.Context().Done()
			s.sseHub.unregister <- client
		}()

		for event := range client {
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
