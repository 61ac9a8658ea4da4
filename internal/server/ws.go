package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handsoff/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeTimeout = 2 * time.Second

// EventsHandler forwards monitor and alert events to WebSocket clients.
type EventsHandler struct {
	hub     *event.Hub
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	// writeMu serialises writes; gorilla connections allow one writer.
	writeMu sync.Mutex
}

type eventMessage struct {
	Name string     `json:"name"`
	Data event.Data `json:"data"`
}

// NewEventsHandler subscribes to the hub and starts broadcasting.
func NewEventsHandler(h *event.Hub) *EventsHandler {
	e := &EventsHandler{
		hub:     h,
		clients: make(map[*websocket.Conn]bool),
	}
	sub := event.Subscribe(h, "monitor.*", "alert.*")
	go e.broadcast(sub)
	return e
}

// ServeHTTP handles WebSocket upgrade requests.
func (e *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	e.mu.Lock()
	e.clients[conn] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.clients, conn)
		e.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (e *EventsHandler) Clients() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients)
}

// broadcast sends every hub message to all connected clients until the
// subscription is closed.
func (e *EventsHandler) broadcast(sub event.Subscription) {
	for msg := range sub.Receiver {
		e.mu.RLock()
		if len(e.clients) == 0 {
			e.mu.RUnlock()
			continue
		}
		conns := make([]*websocket.Conn, 0, len(e.clients))
		for conn := range e.clients {
			conns = append(conns, conn)
		}
		e.mu.RUnlock()

		data, err := json.Marshal(eventMessage{Name: msg.Name, Data: msg.Fields})
		if err != nil {
			log.Debugf("server: encode event %s: %v", msg.Name, err)
			continue
		}

		e.writeMu.Lock()
		for _, conn := range conns {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
			}
		}
		e.writeMu.Unlock()
	}
}
