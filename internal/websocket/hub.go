package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Message is the envelope written to SDK streams.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type clusterPayload struct {
	Origin  string          `json:"origin"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// Topic names the stream an SDK subscribes to: one per organization and environment.
func Topic(organization, environment string) string {
	return organization + ":" + environment
}

type Hub struct {
	// topic -> connected clients
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	// closed when Run returns
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, nil on a single instance
	rdb *redis.Client
	id  string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]struct{}),
		rdb:        rdb,
		id:         uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Topic] == nil {
				h.clients[client.Topic] = make(map[*Client]struct{})
			}
			h.clients[client.Topic][client] = struct{}{}
			h.mu.Unlock()
			metrics.StreamClients.Inc()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"topic": client.Topic})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Topic]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					metrics.StreamClients.Dec()
				}
				if len(clients) == 0 {
					delete(h.clients, client.Topic)
				}
			}
			h.mu.Unlock()
		}
	}
}

// stop releases every connected client and unblocks pending Register calls.
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for topic, clients := range h.clients {
			for client := range clients {
				close(client.Send)
				metrics.StreamClients.Dec()
			}
			delete(h.clients, topic)
		}
	})
}

// Register attaches client to its topic. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of local clients on a topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Publish delivers msg to local clients of topic and forwards it to the other instances.
func (h *Hub) Publish(ctx context.Context, topic string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode stream message", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliver(topic, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterPayload{Origin: h.id, Topic: topic, Message: data})
		if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to forward stream message", map[string]interface{}{"topic": topic, "error": err.Error()})
		}
	}
}

// deliver never blocks: a client with a full buffer misses the message.
// The next change or a reconnect makes the SDK refetch anyway.
func (h *Hub) deliver(topic string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{"topic": topic})
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.id {
				continue
			}
			h.deliver(payload.Topic, payload.Message)
		}
	}
}
