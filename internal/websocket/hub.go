// Package websocket implements the board's live channel: the connection
// hub, per-connection pumps, the presence roster and fan-out of board
// events to every client.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncboard/syncboard/pkg/models"
	"github.com/syncboard/syncboard/pkg/observability"
)

// Config tunes hub and connection behavior.
type Config struct {
	MaxConnections int           `mapstructure:"max_connections"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// DefaultConfig returns sane limits for a small board deployment.
func DefaultConfig() Config {
	return Config{
		MaxConnections: 1024,
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		RateLimit:      20,
		RateBurst:      40,
		SendBuffer:     64,
	}
}

// Hub owns every live connection and fans events out to them. It
// implements events.Publisher so services broadcast without knowing about
// connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	presence PresenceTracker
	resolver UserResolver
	logger   observability.Logger
	metrics  observability.MetricsClient
	config   Config
}

// UserResolver looks up the display identity for a user id on login.
type UserResolver func(ctx context.Context, id uuid.UUID) (*models.UserRef, error)

// SetUserResolver installs the lookup used when a login signal carries
// only a user id. Call before serving connections.
func (h *Hub) SetUserResolver(resolver UserResolver) { h.resolver = resolver }

// NewHub creates a hub with the given presence tracker.
func NewHub(presence PresenceTracker, logger observability.Logger, metrics observability.MetricsClient, config Config) *Hub {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	if config.SendBuffer <= 0 {
		config = DefaultConfig()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		presence:    presence,
		logger:      logger.WithPrefix("websocket"),
		metrics:     metrics,
		config:      config,
	}
}

// Publish implements events.Publisher: broadcast to every connection,
// fire-and-forget.
func (h *Hub) Publish(_ context.Context, event string, payload interface{}) {
	h.Broadcast(event, payload)
}

// Broadcast sends one event to every connection.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.fanOut(event, payload, "")
}

// BroadcastExcept sends one event to every connection but the named one.
func (h *Hub) BroadcastExcept(exceptID string, event string, payload interface{}) {
	h.fanOut(event, payload, exceptID)
}

func (h *Hub) fanOut(event string, payload interface{}, exceptID string) {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast", map[string]interface{}{
			"event": event, "error": err.Error(),
		})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, conn := range h.connections {
		if id == exceptID {
			continue
		}
		conn.enqueue(frame)
	}
	h.metrics.IncrementCounterWithLabels("ws_broadcasts", 1, map[string]string{"event": event})
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) addConnection(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.config.MaxConnections > 0 && len(h.connections) >= h.config.MaxConnections {
		return false
	}
	h.connections[c.id] = c
	return true
}

// removeConnection drops the connection and announces the departure when
// it had a logged-in identity.
func (h *Hub) removeConnection(ctx context.Context, c *Connection) {
	h.mu.Lock()
	_, present := h.connections[c.id]
	delete(h.connections, c.id)
	h.mu.Unlock()
	if !present {
		return
	}

	user, err := h.presence.Leave(ctx, c.id)
	if err != nil {
		h.logger.Warn("failed to remove presence entry", map[string]interface{}{
			"connection_id": c.id, "error": err.Error(),
		})
		return
	}
	if user == nil {
		return
	}

	h.Broadcast(models.EventUserLeft, user)
}

// handleMessage dispatches one inbound connection-scoped signal.
func (h *Hub) handleMessage(ctx context.Context, c *Connection, msg *Message) {
	switch msg.Event {
	case models.SignalUserLogin:
		h.handleUserLogin(ctx, c, msg.Data)
	case models.SignalStartEditing:
		h.relayEditSignal(c, msg.Data, true)
	case models.SignalStopEditing:
		h.relayEditSignal(c, msg.Data, false)
	default:
		h.logger.Debug("ignoring unknown signal", map[string]interface{}{
			"event": msg.Event, "connection_id": c.id,
		})
	}
}

func (h *Hub) handleUserLogin(ctx context.Context, c *Connection, data json.RawMessage) {
	// Clients send either a full {id, username} identity or just a
	// {userId}; the latter is resolved against the user store.
	var login struct {
		ID       uuid.UUID `json:"id"`
		UserID   uuid.UUID `json:"userId"`
		Username string    `json:"username"`
	}
	if err := json.Unmarshal(data, &login); err != nil {
		h.logger.Warn("malformed login signal", map[string]interface{}{"connection_id": c.id})
		return
	}

	user := models.UserRef{ID: login.ID, Username: login.Username}
	if user.ID == uuid.Nil {
		user.ID = login.UserID
	}
	if user.ID == uuid.Nil {
		h.logger.Warn("malformed login signal", map[string]interface{}{"connection_id": c.id})
		return
	}
	if user.Username == "" && h.resolver != nil {
		resolved, err := h.resolver(ctx, user.ID)
		if err != nil || resolved == nil {
			h.logger.Warn("unknown user in login signal", map[string]interface{}{
				"connection_id": c.id, "user_id": user.ID,
			})
			return
		}
		user = *resolved
	}

	c.setUser(user)
	if err := h.presence.Join(ctx, c.id, user); err != nil {
		h.logger.Error("failed to record presence", map[string]interface{}{
			"connection_id": c.id, "error": err.Error(),
		})
		return
	}

	h.BroadcastExcept(c.id, models.EventUserJoined, user)
	h.sendRoster(ctx, c)
}

// relayEditSignal forwards a lock hint to every other client. The lease
// itself is managed over the REST surface; these signals only keep remote
// boards visually in sync.
func (h *Hub) relayEditSignal(c *Connection, data json.RawMessage, start bool) {
	var payload struct {
		TaskID uuid.UUID `json:"taskId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.TaskID == uuid.Nil {
		return
	}

	if start {
		user := c.user()
		if user == nil {
			return
		}
		h.BroadcastExcept(c.id, models.EventTaskLocked, models.TaskLockedPayload{
			TaskID: payload.TaskID,
			User:   *user,
		})
		return
	}
	h.BroadcastExcept(c.id, models.EventTaskUnlocked, models.TaskUnlockedPayload{TaskID: payload.TaskID})
}

// sendRoster delivers the one-shot roster snapshot to a single connection.
// Existing clients track membership through userJoined/userLeft.
func (h *Hub) sendRoster(ctx context.Context, c *Connection) {
	roster, err := h.presence.Active(ctx)
	if err != nil {
		h.logger.Error("failed to read roster", map[string]interface{}{"error": err.Error()})
		return
	}
	frame, err := encodeEnvelope(models.EventActiveUsers, roster)
	if err != nil {
		h.logger.Error("failed to encode roster", map[string]interface{}{"error": err.Error()})
		return
	}
	c.enqueue(frame)
}
