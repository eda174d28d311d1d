// Package realtime streams change events to connected clients over
// Server-Sent Events. Clients subscribe to one channel per family.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// DefaultHeartbeat keeps proxies from closing idle streams.
const DefaultHeartbeat = 15 * time.Second

const outboundBuffer = 16

// Client is one open event stream.
type Client struct {
	ID       uuid.UUID
	UserID   string
	channels map[string]bool
	outbound chan model.ChangeEvent
	done     chan struct{}
	once     sync.Once
}

// Hub tracks clients by channel and broadcasts to them. A client whose
// buffer is full misses the message; since any event only means "re-fetch",
// the next one will catch it up.
type Hub struct {
	mu            sync.RWMutex
	log           *zap.Logger
	subscriptions map[string]map[*Client]bool
	heartbeat     time.Duration
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:           log.Named("realtime"),
		subscriptions: make(map[string]map[*Client]bool),
		heartbeat:     DefaultHeartbeat,
	}
}

// SetHeartbeat overrides the heartbeat interval.
func (h *Hub) SetHeartbeat(d time.Duration) { h.heartbeat = d }

func (h *Hub) NewClient(userID string) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		channels: make(map[string]bool),
		outbound: make(chan model.ChangeEvent, outboundBuffer),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Subscribe(c *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	c.channels[channel] = true
	clients, ok := h.subscriptions[channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[c] = true
	h.log.Debug("client subscribed", zap.Stringer("client", c.ID), zap.String("channel", channel))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range c.channels {
		if subs, ok := h.subscriptions[ch]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	c.channels = make(map[string]bool)
}

// Close detaches c and ends its stream. Safe to call more than once.
func (h *Hub) Close(c *Client) {
	c.once.Do(func() {
		h.removeClient(c)
		close(c.done)
	})
}

// Subscribers returns the number of clients on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[channel])
}

// Broadcast queues ev for every client of the event's family channel.
func (h *Hub) Broadcast(ev model.ChangeEvent) {
	if ev.FamilyCode == "" {
		return
	}
	channel := model.FamilyChannel(ev.FamilyCode)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscriptions[channel] {
		select {
		case c.outbound <- ev:
		default:
			h.log.Warn("dropping event, outbound buffer full", zap.Stringer("client", c.ID))
		}
	}
}

// HandleChange adapts Broadcast to a change-feed handler.
func (h *Hub) HandleChange(_ context.Context, ev model.ChangeEvent) { h.Broadcast(ev) }

// ServeHTTP streams events for c until the request ends or c is closed.
// Each event is written as "event: change" with the JSON ChangeEvent as data.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, c *Client) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	// The opening comment lets clients know the subscription is live.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-c.outbound:
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("marshal event failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: change\ndata: %s\n\n", ev.At.UnixNano(), data)
			flusher.Flush()
		}
	}
}
