package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/metrics"
	"github.com/kjannette/openarb-backend/internal/models"
)

const broadcastBuffer = 256

type TradeMessage struct {
	Type string             `json:"type"`
	Data models.TradeRecord `json:"data"`
}

// Hub fans trade events out to connected stream clients. Slow clients whose
// send buffer is full are dropped rather than blocking the broadcast.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	log    *logrus.Entry
	origin *OriginChecker
}

func NewHub(allowedOrigins string, log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logging.Component(log, "ws"),
		origin:     NewOriginChecker(allowedOrigins),
	}
}

// Run serves register/unregister/broadcast until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			metrics.WebsocketClients.Set(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(n))
			h.log.WithField("clients", n).Debug("Stream client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(n))
			h.log.WithField("clients", n).Debug("Stream client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.log.Warn("Dropped slow stream client")
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(n))
		}
	}
}

// Broadcast queues v for every client. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("Marshal broadcast message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("Broadcast queue full, message dropped")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WalletConnected is not streamed; account details stay private to the caller.
func (h *Hub) WalletConnected(models.Account) {}

func (h *Hub) TradeRecorded(_ models.Identity, rec models.TradeRecord) {
	h.Broadcast(TradeMessage{Type: "tradeRecorded", Data: rec})
}
