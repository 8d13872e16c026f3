package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

const (
	// writeWait is the max time allowed for one frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before the read
	// side gives up; the hub relies on this transport-level keep-alive for
	// disconnect detection.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames; presence messages are tiny.
	maxMessageSize = 8192
	// sendBufferSize is the per-connection outbound queue. A full buffer
	// drops the event: delivery is best-effort.
	sendBufferSize = 64
)

// client is one WebSocket connection. It implements hub.Sender: broadcasts
// and acks share the outbound queue, so frames to one recipient keep their
// emission order.
type client struct {
	connectionID string
	conn         *websocket.Conn
	send         chan any
	log          *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}

	// identity from the handshake token; empty when auth is disabled.
	claimUserID      string
	claimTenantID    string
	claimDisplayName string
}

func newClient(connectionID string, conn *websocket.Conn, log *zap.Logger) *client {
	return &client{
		connectionID: connectionID,
		conn:         conn,
		send:         make(chan any, sendBufferSize),
		log:          log,
		closed:       make(chan struct{}),
	}
}

// Send queues a broadcast event for delivery. It never blocks: a closed
// connection or full buffer returns false and the event is dropped.
func (c *client) Send(event domain.Event) bool {
	return c.enqueue(EventFrame{Type: "event", Event: event.Name, Payload: event.Payload})
}

func (c *client) enqueue(frame any) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close marks the client dead and wakes the write pump. Idempotent.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// writePump serializes all frame writes for the connection and keeps the
// ping/pong heartbeat going. It exits when the client is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump reads and dispatches inbound messages until the connection dies,
// preserving the client's send order. dispatch is called synchronously.
func (c *client) readPump(dispatch func(*client, Inbound)) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error",
					zap.String("connection_id", c.connectionID),
					zap.Error(err),
				)
			}
			return
		}
		dispatch(c, msg)
	}
}
