// Package events streams session change signals to websocket listeners.
// Signals carry no payload; listeners re-read the session when one
// arrives.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// TypeSessionChanged is the only message type sent.
const TypeSessionChanged = "session.changed"

type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans signals out to every connected listener.
type Hub struct {
	clients    map[*Client]bool
	signals    chan struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		signals:    make(chan struct{}, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and signals until ctx ends, then closes
// every listener.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			metrics.SessionListeners.Set(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			metrics.SessionListeners.Inc()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.SessionListeners.Dec()
			}
			h.mu.Unlock()

		case <-h.signals:
			msg := mustMarshal(Message{Type: TypeSessionChanged, Timestamp: time.Now()})
			metrics.SessionSignalsTotal.Inc()
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow listener
					delete(h.clients, c)
					close(c.send)
					metrics.SessionListeners.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Signal queues a broadcast. Signals that arrive while one is pending are
// merged into it.
func (h *Hub) Signal() {
	select {
	case h.signals <- struct{}{}:
	default:
	}
}

// Attach forwards every broker signal to the hub.
func (h *Hub) Attach(b auth.Broker) (detach func()) {
	return b.Subscribe(h.Signal)
}

// Clients is the number of registered listeners.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, 8)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
