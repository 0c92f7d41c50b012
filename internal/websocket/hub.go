package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "ragchat:session_events"

// Hub tracks the sockets watching each session. With Redis configured every
// notification is also published for the other instances.
type Hub struct {
	// id tags what this instance publishes so it can skip its own echo.
	id string

	// Registered clients map: SessionID -> open sockets (multi-tab)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		id:         uuid.NewString(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session has no more watchers", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// NotifySession sends an event to every socket watching the session, here
// and on the other instances. Local sockets are served directly; the Redis
// echo of our own publish is ignored.
func (h *Hub) NotifySession(sessionID string, event events.Event) {
	data, err := json.Marshal(dto.StreamFrame{Type: dto.FrameEvent, Event: events.ToEnvelope(event)})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(sessionID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:    h.id,
			SessionID: sessionID,
			Message:   data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish to redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Watchers returns how many local sockets watch the session.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// deliverLocal drops the frame for a client whose buffer is full. Only the
// unregister path closes Send, since the client's own turn may still write.
func (h *Hub) deliverLocal(sessionID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[sessionID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{"session_id": sessionID})
		}
	}
}

type clusterMessage struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg = m
		}

		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.id {
			continue
		}
		h.deliverLocal(payload.SessionID, payload.Message)
	}
}
