package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

const (
	clientBuffer = 64
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans metadata-changed events out to every connected panel. A client
// that cannot keep up is dropped rather than blocking the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[chan models.MetadataChangedEvent]struct{}
	log     *slog.Logger
	onCount func(int)
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: map[chan models.MetadataChangedEvent]struct{}{},
		log:     log,
	}
}

// Clients is the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add() chan models.MetadataChangedEvent {
	ch := make(chan models.MetadataChangedEvent, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.reportCount(n)
	return ch
}

func (h *Hub) remove(ch chan models.MetadataChangedEvent) {
	h.mu.Lock()
	_, ok := h.clients[ch]
	if ok {
		delete(h.clients, ch)
		close(ch)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.reportCount(n)
	}
}

func (h *Hub) reportCount(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Publish queues ev for every subscriber
func (h *Hub) Publish(ev models.MetadataChangedEvent) {
	if ev.Type == "" {
		ev.Type = models.EventMetadataChanged
	}

	var slow []chan models.MetadataChangedEvent
	h.mu.Lock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			slow = append(slow, ch)
		}
	}
	h.mu.Unlock()

	for _, ch := range slow {
		h.log.Warn("dropping slow event subscriber")
		h.remove(ch)
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := h.add()
	defer h.remove(ch)

	// the read side only watches for the client closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
