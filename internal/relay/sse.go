package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oremus-labs/ol-tool-relay/internal/events"
)

const (
	// DefaultWriteTimeout bounds a single write to a subscriber.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultHeartbeatInterval is the spacing of SSE keep-alive comments.
	DefaultHeartbeatInterval = 30 * time.Second
)

// ChannelOptions tune a push channel adapter.
type ChannelOptions struct {
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

func (o ChannelOptions) withDefaults() ChannelOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.HeartbeatInterval < 0 {
		o.HeartbeatInterval = 0
	}
	return o
}

type writeRequest struct {
	frame  []byte
	result chan error
}

// SSEChannel adapts an http.ResponseWriter into a server-sent events channel.
// All writes happen on the goroutine running Serve; Send hands frames to it.
type SSEChannel struct {
	lifecycle

	w      http.ResponseWriter
	rc     *http.ResponseController
	opts   ChannelOptions
	writes chan writeRequest
}

// NewSSEChannel writes the event-stream headers and returns an open channel.
func NewSSEChannel(w http.ResponseWriter, opts ChannelOptions) (*SSEChannel, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errors.New("streaming unsupported")
	}
	c := &SSEChannel{
		w:      w,
		rc:     http.NewResponseController(w),
		opts:   opts.withDefaults(),
		writes: make(chan writeRequest),
	}
	c.init("sse")

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := c.rc.Flush(); err != nil {
		return nil, err
	}
	return c, nil
}

// WriteDirect writes evt from the serving goroutine before Serve starts.
// It is used for the connected acknowledgment.
func (c *SSEChannel) WriteDirect(evt events.Event) error {
	if c.State() == StateClosed {
		return c.transportError("write", ErrChannelClosed)
	}
	if err := c.write(events.Frame(evt)); err != nil {
		te := c.transportError("write", err)
		c.Close(te)
		return te
	}
	return nil
}

// Send queues evt for the serving goroutine and waits for the write result.
func (c *SSEChannel) Send(ctx context.Context, evt events.Event) error {
	if c.State() == StateClosed {
		return c.transportError("send", ErrChannelClosed)
	}
	req := writeRequest{frame: events.Frame(evt), result: make(chan error, 1)}

	timer := time.NewTimer(c.opts.WriteTimeout)
	defer timer.Stop()

	select {
	case c.writes <- req:
	case <-c.done:
		return c.transportError("send", ErrChannelClosed)
	case <-ctx.Done():
		return c.fail("send", ctx.Err())
	case <-timer.C:
		return c.fail("send", ErrWriteTimeout)
	}

	select {
	case err := <-req.result:
		if err != nil {
			return c.fail("write", err)
		}
		return nil
	case <-c.done:
		return c.transportError("write", ErrChannelClosed)
	case <-ctx.Done():
		return c.fail("write", ctx.Err())
	case <-timer.C:
		return c.fail("write", ErrWriteTimeout)
	}
}

// Serve runs the write loop until the request context ends or the channel
// closes. It must be called from the HTTP handler goroutine that owns w.
func (c *SSEChannel) Serve(ctx context.Context) error {
	var heartbeat <-chan time.Time
	if c.opts.HeartbeatInterval > 0 {
		ticker := time.NewTicker(c.opts.HeartbeatInterval)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			c.Close(nil)
			return nil
		case <-c.done:
			return c.Err()
		case req := <-c.writes:
			err := c.write(req.frame)
			req.result <- err
			if err != nil {
				c.Close(c.transportError("write", err))
				return err
			}
		case <-heartbeat:
			if err := c.write(events.Heartbeat()); err != nil {
				c.Close(c.transportError("heartbeat", err))
				return err
			}
		}
	}
}

func (c *SSEChannel) write(frame []byte) error {
	err := c.rc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	return c.rc.Flush()
}

func (c *SSEChannel) fail(op string, err error) error {
	te := c.transportError(op, err)
	c.Close(te)
	return te
}
