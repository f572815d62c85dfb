package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/syncboard/syncboard/pkg/models"
)

// Connection wraps one client socket. Writes go through the buffered send
// channel so broadcasts never block on a slow client.
type Connection struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	mu       sync.RWMutex
	identity *models.UserRef

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(conn *websocket.Conn, hub *Hub) *Connection {
	return &Connection{
		id:     uuid.New().String(),
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, hub.config.SendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *Connection) setUser(user models.UserRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &user
}

func (c *Connection) user() *models.UserRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// enqueue hands a frame to the write pump. A client that cannot drain its
// buffer is disconnected rather than allowed to stall the hub.
func (c *Connection) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.closed:
	default:
		c.hub.logger.Warn("dropping slow connection", map[string]interface{}{
			"connection_id": c.id,
		})
		c.hub.metrics.IncrementCounter("ws_slow_disconnects", 1)
		c.close()
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// readPump decodes inbound frames and dispatches them to the hub until
// the socket closes.
func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		c.close()
		c.hub.removeConnection(ctx, c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	limiter := rate.NewLimiter(rate.Limit(c.hub.config.RateLimit), c.hub.config.RateBurst)
	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		var msg Message
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				c.hub.logger.Debug("read error", map[string]interface{}{
					"connection_id": c.id, "error": err.Error(),
				})
			}
			return
		}

		if !limiter.Allow() {
			c.hub.metrics.IncrementCounter("ws_rate_limited", 1)
			continue
		}

		c.hub.handleMessage(ctx, c, &msg)
	}
}

// writePump drains the send channel and keeps the socket alive with pings.
func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case frame := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, c.hub.config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.hub.logger.Debug("write error", map[string]interface{}{
					"connection_id": c.id, "error": err.Error(),
				})
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.hub.config.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
