package websocket

import (
	"context"
	"sync"

	"hoa-ledger/internal/metrics"
)

type requestKind int

const (
	requestRegister requestKind = iota
	requestUnregister
	requestSubscribe
	requestUnsubscribe
)

// request is one membership change. All changes share one queue so a
// client's register, subscribe and unregister are applied in the order sent.
type request struct {
	kind    requestKind
	client  *Client
	channel string
}

// Hub manages WebSocket client connections and channel subscriptions
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// channels maps channel name to set of clients subscribed to it
	channels map[string]map[*Client]struct{}

	requests chan request

	// done closes when Run returns; later requests are dropped
	done chan struct{}

	metrics *metrics.Ledger
}

// NewHub creates a new WebSocket hub
func NewHub(m *metrics.Ledger) *Hub {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		requests: make(chan request, 512),
		done:     make(chan struct{}),
		metrics:  m,
	}
}

// Run starts the hub's event loop. When ctx ends every client is dropped.
// Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.removeAll()
			return
		case req := <-h.requests:
			switch req.kind {
			case requestRegister:
				h.addClient(req.client)
			case requestUnregister:
				h.removeClient(req.client)
			case requestSubscribe:
				h.subscribeToChannel(req.client, req.channel)
			case requestUnsubscribe:
				h.unsubscribeFromChannel(req.client, req.channel)
			}
		}
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.enqueue(request{kind: requestRegister, client: client})
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.enqueue(request{kind: requestUnregister, client: client})
}

// Subscribe subscribes a client to a channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.enqueue(request{kind: requestSubscribe, client: client, channel: channel})
}

// Unsubscribe unsubscribes a client from a channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.enqueue(request{kind: requestUnsubscribe, client: client, channel: channel})
}

func (h *Hub) enqueue(req request) {
	select {
	case h.requests <- req:
	case <-h.done:
	}
}

// Broadcast sends a message to all clients subscribed to a channel
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	clients := h.channels[channel]
	for c := range clients {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetChannelSubscriberCount returns the number of subscribers for a channel
func (h *Hub) GetChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	h.metrics.LiveClients.Inc()
}

// removeClient removes a client and all its subscriptions (internal)
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, channel := range client.GetChannels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
	h.metrics.LiveClients.Dec()
}

func (h *Hub) removeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.removeClient(c)
	}
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// a client that already left must not be re-added through a late request
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.Subscribe(channel)
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.Unsubscribe(channel)
}
