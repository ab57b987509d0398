package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/sujalbistaa/murmur/internal/metrics"
	"github.com/sujalbistaa/murmur/internal/models"
)

// Event names pushed to viewers.
const (
	EventNewPost     = "newPost"
	EventLikeUpdate  = "likeUpdate"
	EventReplyUpdate = "replyUpdate"
)

const (
	broadcastQueueSize = 256
	clientQueueSize    = 256
)

// Message is the envelope every push event travels in.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ReplyUpdate tells viewers with an open reply panel to refetch it.
type ReplyUpdate struct {
	ReplyToID string `json:"replyToId"`
}

// Hub fans every broadcast out to all registered clients. A single queue
// feeds the fan-out loop, so events leave in the order they were published.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu    sync.RWMutex
	count int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			slog.Debug("WebSocket client registered", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.setCount(len(h.clients))
			slog.Debug("WebSocket client unregistered", "clients", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow viewer: drop it rather than stall everyone else.
					close(client.send)
					delete(h.clients, client)
					metrics.SlowClientsDropped.Inc()
				}
			}
			h.setCount(len(h.clients))

		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.setCount(0)
			return
		}
	}
}

// Stop ends Run and closes every client connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	metrics.ConnectedViewers.Set(float64(n))
}

// NewPost announces a created post or repost, original embedded.
func (h *Hub) NewPost(p *models.Post) {
	h.publish(EventNewPost, p)
}

// LikeUpdate announces the result of a like toggle.
func (h *Hub) LikeUpdate(s models.LikeState) {
	h.publish(EventLikeUpdate, s)
}

// ReplyUpdate announces that parentID received a reply.
func (h *Hub) ReplyUpdate(parentID string) {
	h.publish(EventReplyUpdate, ReplyUpdate{ReplyToID: parentID})
}

// publish never blocks the caller: when the queue is full the event is dropped.
func (h *Hub) publish(eventType string, data any) {
	msg, err := Encode(eventType, data)
	if err != nil {
		slog.Error("Error marshalling WS message", "type", eventType, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
		metrics.EventsPublished.WithLabelValues(eventType).Inc()
	default:
		slog.Warn("Broadcast queue full, dropping event", "type", eventType)
		metrics.EventsDropped.WithLabelValues(eventType).Inc()
	}
}

// Encode builds the wire form of an event.
func Encode(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: eventType, Data: raw})
}
