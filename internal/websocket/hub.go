package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/telemetry"
)

// redisChannel fans turn reports out across instances. Reports arriving from
// Redis are delivered locally but never republished, so there is no loop.
const redisChannel = "telemetry_events"

// Hub streams turn telemetry to connected admin dashboards. Reports come in
// from the in-process bus, go out to every local watcher, and optionally
// cross instances through Redis pub/sub.
type Hub struct {
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    *redis.Client
	bus    *telemetry.Publisher
	logger logger.ILogger
}

func NewHub(bus *telemetry.Publisher, rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
		rdb:        rdb,
		bus:        bus,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	go h.consumeBus(ctx)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Watcher registered", map[string]interface{}{"client_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				h.logger.Info("Hub", "Watcher unregistered", map[string]interface{}{"client_id": client.ID})
			}
			h.mu.Unlock()

		case <-ctx.Done():
			return
		}
	}
}

// consumeBus forwards every turn report from the in-process bus.
func (h *Hub) consumeBus(ctx context.Context) {
	messages, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.logger.Error("Hub", "telemetry subscribe failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for msg := range messages {
		h.deliverLocal(msg.Payload)
		if h.rdb != nil {
			if err := h.rdb.Publish(ctx, redisChannel, msg.Payload).Err(); err != nil {
				h.logger.Warn("Hub", "redis publish failed", map[string]interface{}{"error": err.Error()})
			}
		}
		msg.Ack()
	}
}

func (h *Hub) deliverLocal(report []byte) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "turn_report",
		"data": json.RawMessage(report),
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "watcher buffer full, dropping report", map[string]interface{}{"client_id": client.ID})
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliverLocal([]byte(msg.Payload))
	}
}
