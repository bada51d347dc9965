package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"rag-chat-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const clusterChannel = "gateway_events"

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionClosed   = errors.New("connection closed")
)

// clusterMessage routes a push or close to whichever instance owns the socket.
type clusterMessage struct {
	TargetConnectionID string `json:"target_connection_id"`
	Message            []byte `json:"message,omitempty"`
	Close              bool   `json:"close,omitempty"`
}

type Hub struct {
	// Local sockets: connection id -> client
	clients map[string]*Client

	mu sync.RWMutex

	contexts ContextStore

	// Redis connection for cross-instance delivery; nil runs single-instance.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, contexts ContextStore, log logger.ILogger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		contexts: contexts,
		rdb:      rdb,
		logger:   log,
	}
}

// Run relays cluster messages to local sockets until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()
		return
	}

	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleClusterMessage(ctx, []byte(msg.Payload))
		}
	}
}

func (h *Hub) handleClusterMessage(ctx context.Context, payload []byte) {
	var m clusterMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
		return
	}

	client, ok := h.local(m.TargetConnectionID)
	if !ok {
		return
	}
	if m.Close {
		client.requestClose()
		return
	}
	if err := client.enqueue(ctx, m.Message); err != nil {
		h.logger.Warn("Hub", "Relayed push failed", map[string]interface{}{
			"connection_id": m.TargetConnectionID,
			"error":         err.Error(),
		})
	}
}

func (h *Hub) Register(client *Client, cc ConnectionContext) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	if h.contexts != nil {
		h.contexts.Save(cc)
	}
	h.logger.Info("Hub", "Client registered", map[string]interface{}{"connection_id": client.ID, "user_id": cc.UserID})
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if c, ok := h.clients[client.ID]; ok && c == client {
		delete(h.clients, client.ID)
		client.shutdown()
	}
	h.mu.Unlock()
	if h.contexts != nil {
		h.contexts.Delete(client.ID)
	}
	h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"connection_id": client.ID})
}

// Context returns the stored context of a live connection.
func (h *Hub) Context(connectionID string) (ConnectionContext, bool) {
	if h.contexts == nil {
		return ConnectionContext{}, false
	}
	return h.contexts.Get(connectionID)
}

// contextFor resolves the context a frame runs under. The store is authoritative;
// the context captured at upgrade is used only when no store is configured.
func (h *Hub) contextFor(connectionID string, captured ConnectionContext) (ConnectionContext, bool) {
	if h.contexts == nil {
		return captured, true
	}
	return h.contexts.Get(connectionID)
}

// Connections lists the contexts of live connections on this instance.
func (h *Hub) Connections() []ConnectionContext {
	if h.contexts == nil {
		return []ConnectionContext{}
	}
	return h.contexts.List()
}

func (h *Hub) local(connectionID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connectionID]
	return c, ok
}

// Push delivers one text frame. Frames for the same connection keep their order.
func (h *Hub) Push(ctx context.Context, connectionID string, data []byte) error {
	if client, ok := h.local(connectionID); ok {
		return client.enqueue(ctx, data)
	}
	return h.publish(ctx, clusterMessage{TargetConnectionID: connectionID, Message: data})
}

// Close ends the connection after every frame pushed before it has been written.
func (h *Hub) Close(ctx context.Context, connectionID string) error {
	if client, ok := h.local(connectionID); ok {
		client.requestClose()
		return nil
	}
	return h.publish(ctx, clusterMessage{TargetConnectionID: connectionID, Close: true})
}

func (h *Hub) publish(ctx context.Context, m clusterMessage) error {
	if h.rdb == nil {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, m.TargetConnectionID)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal cluster message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", clusterChannel, err)
	}
	return nil
}

// Count is the number of local sockets.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
