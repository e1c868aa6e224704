package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "collab:edit-events"

var subscribersActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "collab_event_subscribers",
	Help: "Number of connected edit event subscribers",
})

// Hub fans edit events out to the clients watching each content item
type Hub struct {
	// Registered clients grouped by content ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *domain.EditEvent

	mu          sync.RWMutex
	instanceID  string
	redisClient *redis.Client
	ready       chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// redisMessage carries an event between instances
type redisMessage struct {
	Origin string            `json:"origin"`
	Event  *domain.EditEvent `json:"event"`
}

// NewHub creates a new Hub. With a nil redisClient events stay local.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *domain.EditEvent, 256),
		instanceID:  uuid.NewString(),
		redisClient: redisClient,
		ready:       make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Ready is closed once the hub can receive events from other instances
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	} else {
		close(h.ready)
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.contentID] == nil {
				h.clients[client.contentID] = make(map[*Client]bool)
			}
			h.clients[client.contentID][client] = true
			h.mu.Unlock()
			subscribersActive.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)

		case <-h.ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.drop(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop removes client; the caller holds mu
func (h *Hub) drop(client *Client) {
	clients, ok := h.clients[client.contentID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	subscribersActive.Dec()
	if len(clients) == 0 {
		delete(h.clients, client.contentID)
	}
}

func (h *Hub) deliver(event *domain.EditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[event.ContentID] {
		select {
		case client.send <- data:
		default:
			// slow consumer
			h.drop(client)
		}
	}
}

// Publish sends event to local watchers and to other instances via Redis
func (h *Hub) Publish(event *domain.EditEvent) {
	select {
	case h.broadcast <- event:
	case <-h.ctx.Done():
		return
	default:
		logger.Warn("edit event dropped, broadcast queue full: %s %s", event.Type, event.ContentID)
	}

	if h.redisClient != nil {
		data, err := json.Marshal(&redisMessage{Origin: h.instanceID, Event: event})
		if err == nil {
			h.redisClient.Publish(h.ctx, redisPubSubChannel, data) //nolint:errcheck
		}
	}
}

// subscribeRedis relays events published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(h.ctx); err != nil {
		logger.Warn("edit event subscription failed: %v", err)
		close(h.ready)
		return
	}
	close(h.ready)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil || rm.Event == nil {
				continue
			}
			if rm.Origin == h.instanceID {
				continue
			}
			select {
			case h.broadcast <- rm.Event:
			case <-h.ctx.Done():
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// ClientCount returns the number of clients watching contentID
func (h *Hub) ClientCount(contentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[contentID])
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}
