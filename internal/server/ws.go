package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/input"
)

const (
	writeWait    = time.Second
	maxEventSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ControlTarget receives device events and supplies snapshots.
type ControlTarget interface {
	Snapshot() app.Snapshot
	HandleEvent(e input.Event) bool
}

// ControlHandler is the rendering host's websocket. Clients send
// input.Event messages and receive a snapshot at the broadcast rate.
type ControlHandler struct {
	target   ControlTarget
	interval time.Duration
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	invalid  int
}

// NewControlHandler creates a ControlHandler and starts its broadcaster.
func NewControlHandler(t ControlTarget, fps int) *ControlHandler {
	if fps <= 0 {
		fps = DefaultBroadcastFPS
	}
	h := &ControlHandler{
		target:   t,
		interval: time.Second / time.Duration(fps),
		clients:  make(map[*websocket.Conn]bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests and reads device events
// until the client goes away.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxEventSize)

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var e input.Event
		if err := json.Unmarshal(data, &e); err != nil {
			h.reject(err)
			continue
		}
		if err := e.Validate(); err != nil {
			h.reject(err)
			continue
		}
		h.target.HandleEvent(e)
	}
}

func (h *ControlHandler) reject(err error) {
	h.mu.Lock()
	h.invalid++
	n := h.invalid
	h.mu.Unlock()
	if n%50 == 1 {
		log.Printf("Ignoring invalid control message (%d so far): %v", n, err)
	}
}

// Clients returns the number of connected clients.
func (h *ControlHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster and disconnects every client.
func (h *ControlHandler) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
}

// broadcast sends the latest snapshot to all connected clients.
func (h *ControlHandler) broadcast() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		msg, err := json.Marshal(h.target.Snapshot())
		if err != nil {
			log.Printf("Error encoding snapshot: %v", err)
			continue
		}

		var failed []*websocket.Conn
		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				failed = append(failed, conn)
			}
		}
		h.mu.RUnlock()

		// Closing unblocks the reader, which unregisters the client.
		for _, conn := range failed {
			conn.Close()
		}
	}
}
