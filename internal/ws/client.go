package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/pliu/courier/internal/models"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameLength = 8192
)

var errSendBufferFull = errors.New("send buffer full")
var errConnClosed = errors.New("connection closed")

// Client is the websocket-backed Conn implementation. All writes to the
// underlying connection go through a single writer goroutine draining the
// bounded send channel; Send only enqueues.
type Client struct {
	id       string
	user     *models.User
	hub      *Hub
	conn     *websocket.Conn
	send     chan Event
	done     chan struct{}
	once     sync.Once
	openedAt time.Time
	limiter  *rate.Limiter
}

func newClient(hub *Hub, conn *websocket.Conn, user *models.User) *Client {
	return &Client{
		id:       uuid.NewString(),
		user:     user,
		hub:      hub,
		conn:     conn,
		send:     make(chan Event, hub.cfg.SendBufferSize),
		done:     make(chan struct{}),
		openedAt: time.Now(),
		limiter:  rate.NewLimiter(rate.Limit(hub.cfg.InboundRate), hub.cfg.InboundBurst),
	}
}

func (c *Client) ID() string    { return c.id }
func (c *Client) UserID() int64 { return c.user.ID }

// Send enqueues without blocking. A full buffer means the consumer is too
// slow to keep; the caller treats the error as a dead connection.
func (c *Client) Send(ev Event) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close makes the pumps exit. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump processes inbound frames in arrival order until the connection
// drops, then unregisters the client. It is the connection's owning task:
// every exit path releases the registration.
func (c *Client) readPump() {
	defer func() {
		c.hub.Registry.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxFrameLength)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("read error", "user_id", c.user.ID, "conn_id", c.id, "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.hub.sendError(c, "rate limit exceeded")
			continue
		}
		c.hub.handleFrame(c, raw)
	}
}

// writePump is the single writer for the connection. It serializes event
// writes and keepalive pings; backpressure is bounded by the write deadline.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
