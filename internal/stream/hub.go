// Package stream implements the subscriber-facing side of the service: a
// WebSocket hub fanning every serialized event envelope out to all connected
// clients.
package stream

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	drepo "CoinStream/internal/domain/repository"
	"CoinStream/internal/event"
	applogger "CoinStream/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns the registered subscriber set. Registration, unregistration and
// broadcast may all run concurrently; broadcast holds the read lock across
// its send loop, so a send queue is only ever closed once no send can still
// be in flight. Sends are non-blocking, so the lock is never held on a slow
// subscriber.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	sendBuffer int

	events  drepo.Events
	metrics drepo.Metrics
	log     *applogger.Logger
}

// NewHub creates an empty hub. sendBuffer is the per-client outbound queue
// length; a client whose queue is full has messages dropped rather than
// stalling the fan-out.
func NewHub(sendBuffer int, metrics drepo.Metrics, log *applogger.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		sendBuffer: sendBuffer,
		metrics:    metrics,
		log:        log,
	}
}

// SetEvents attaches the emission surface used for user_count announcements
// and inbound-message re-broadcast. Wired after construction because the bus
// broadcasts through this hub.
func (h *Hub) SetEvents(events drepo.Events) { h.events = events }

// Register adds a subscriber. Registering an already-registered client is a
// no-op.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetSubscriberCount(count)
	h.log.Info("client connected",
		applogger.String("peer", c.peer()),
		applogger.Int("clients", count),
	)
	h.announceUserCount(count)
}

// Unregister removes a subscriber and releases its send queue. Unknown
// clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	h.metrics.SetSubscriberCount(count)
	h.log.Info("client disconnected",
		applogger.String("peer", c.peer()),
		applogger.Int("clients", count),
	)
	h.announceUserCount(count)
}

// Broadcast delivers a payload to every registered subscriber. Delivery to a
// slow subscriber is dropped; with zero subscribers the payload is discarded.
// The read lock is held across the sends: Unregister's write lock cannot be
// taken mid-loop, so no send races the close of a departing client's queue.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	count := len(h.clients)
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.metrics.RecordError("broadcast_drop")
			h.log.Debug("send queue full, dropping message",
				applogger.String("peer", c.peer()),
			)
		}
	}
	h.mu.RUnlock()

	h.log.Debug("message broadcasted",
		applogger.Int("bytes", len(payload)),
		applogger.Int("clients", count),
	)
}

// ClientCount returns the number of registered subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request to a WebSocket subscription and starts the
// client's read/write pumps.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.metrics.RecordError("ws_upgrade")
		return err
	}

	client := newClient(h, conn, h.sendBuffer)
	h.Register(client)

	if hello, err := event.HelloPayload("welcome to the coin stream"); err == nil {
		select {
		case client.send <- hello:
		default:
		}
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (h *Hub) announceUserCount(count int) {
	if h.events == nil {
		return
	}
	if err := h.events.EmitUserCount(count); err != nil {
		h.log.Warn("user count emit failed", applogger.Error(err))
	}
}
