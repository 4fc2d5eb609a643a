package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oremus-labs/ol-tool-relay/internal/events"
)

// maxClientMessageBytes caps inbound frames; client messages are discarded.
const maxClientMessageBytes = 4096

// Upgrader accepts WebSocket subscriptions from any origin.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSChannel delivers events as WebSocket text messages carrying the same JSON
// body as the SSE frames.
type WSChannel struct {
	lifecycle

	conn *websocket.Conn
	opts ChannelOptions
	mu   sync.Mutex
}

// NewWSChannel wraps an upgraded connection.
func NewWSChannel(conn *websocket.Conn, opts ChannelOptions) *WSChannel {
	c := &WSChannel{conn: conn, opts: opts.withDefaults()}
	c.init("websocket")
	return c
}

// Send writes evt with a deadline of the write timeout or ctx's deadline, whichever is sooner.
func (c *WSChannel) Send(ctx context.Context, evt events.Event) error {
	if c.State() == StateClosed {
		return c.transportError("send", ErrChannelClosed)
	}
	if err := ctx.Err(); err != nil {
		return c.fail("send", err)
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return c.fail("write", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, evt.Bytes()); err != nil {
		return c.fail("write", err)
	}
	return nil
}

// Serve reads (and discards) client frames until the peer goes away, the
// request context ends, or the channel is closed.
func (c *WSChannel) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close(nil)
		case <-c.done:
		}
	}()

	if c.opts.HeartbeatInterval > 0 {
		go c.ping()
	}

	c.conn.SetReadLimit(maxClientMessageBytes)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if c.State() == StateClosed {
				return c.Err()
			}
			c.Close(c.transportError("read", err))
			return nil
		}
	}
}

// Close transitions to closed and tears down the connection.
func (c *WSChannel) Close(reason error) {
	if !c.close(reason) {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
	_ = c.conn.Close()
}

func (c *WSChannel) ping() {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.Close(c.transportError("ping", err))
				return
			}
		}
	}
}

func (c *WSChannel) fail(op string, err error) error {
	te := c.transportError(op, err)
	c.Close(te)
	return te
}
