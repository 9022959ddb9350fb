package hub

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// maxInboundSize bounds inbound control messages; clients only send
	// subscribe and heartbeat frames.
	maxInboundSize = 512
)

// inboundMessage is the fixed schema for client-to-server frames.
type inboundMessage struct {
	Type string `json:"type"` // "subscribe" or "heartbeat"
}

// Connection is one live family member's websocket registered under a
// single pregnancy group. Events are queued on a bounded channel and
// written by a dedicated pump; a consumer too slow to drain its queue is
// treated as dead and dropped.
type Connection struct {
	id      string
	userID  string
	groupID string
	ws      *websocket.Conn
	send    chan []byte
	logger  *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnection wraps an upgraded websocket. ws may be nil in tests; the
// send queue then acts as the observable outbound stream.
func NewConnection(ws *websocket.Conn, userID, groupID string, queueSize int, logger *zap.Logger) *Connection {
	return &Connection{
		id:      uuid.NewString(),
		userID:  userID,
		groupID: groupID,
		ws:      ws,
		send:    make(chan []byte, queueSize),
		logger:  logger.Named("conn"),
		closed:  make(chan struct{}),
	}
}

// ID returns the connection's unique id.
func (c *Connection) ID() string { return c.id }

// UserID returns the authenticated user the connection belongs to.
func (c *Connection) UserID() string { return c.userID }

// GroupID returns the pregnancy group channel the connection subscribed to.
func (c *Connection) GroupID() string { return c.groupID }

// Outbound exposes the queued event stream. Consumed by the write pump and
// by tests asserting on delivered events.
func (c *Connection) Outbound() <-chan []byte { return c.send }

// trySend queues data without blocking. Returns false when the connection
// is closed or its queue is full, marking it dead for the caller to prune.
func (c *Connection) trySend(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close marks the connection dead and closes the underlying websocket.
// Safe to call multiple times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)

		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// WritePump writes queued events to the websocket and pings on the
// heartbeat interval. Runs until the connection closes or a write fails.
func (c *Connection) WritePump(heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return

		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Write failed, closing connection",
					zap.String("connID", c.id), zap.Error(err))
				c.Close()

				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// ReadPump consumes inbound frames and enforces the heartbeat deadline:
// missing maxMissed consecutive heartbeats (pongs or explicit heartbeat
// frames) fails the read and tears the connection down.
func (c *Connection) ReadPump(heartbeat time.Duration, maxMissed int, onClose func(*Connection)) {
	defer func() {
		c.Close()
		onClose(c)
	}()

	deadline := heartbeat * time.Duration(maxMissed)

	c.ws.SetReadLimit(maxInboundSize)
	c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Unexpected close", zap.String("connID", c.id), zap.Error(err))
			}

			return
		}

		var msg inboundMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == "heartbeat" {
			c.ws.SetReadDeadline(time.Now().Add(deadline))
		}
	}
}
