// Package relay holds the subscriber registry, the push channel adapters and
// the broadcast dispatcher that fans tool results out to live subscribers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oremus-labs/ol-tool-relay/internal/events"
)

// State is the lifecycle state of a push channel.
type State int32

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrChannelClosed is returned by Send after the channel reached its terminal state.
	ErrChannelClosed = errors.New("push channel closed")
	// ErrWriteTimeout is returned when a write did not complete within the write timeout.
	ErrWriteTimeout = errors.New("push channel write timeout")
	// ErrRelayShutdown is the close reason used when the relay stops.
	ErrRelayShutdown = errors.New("relay shutting down")
)

// Channel is one subscriber's long-lived push connection. Implementations
// must be pointer types: the registry compares channels by identity.
type Channel interface {
	ID() string
	Transport() string
	// Send writes evt to the client. Failures are returned as *TransportError
	// and leave the channel closed.
	Send(ctx context.Context, evt events.Event) error
	// OnClose registers fn to run once when the channel closes. If the channel
	// is already closed fn runs immediately.
	OnClose(fn func())
	Close(reason error)
	Done() <-chan struct{}
	State() State
}

// TransportError describes a failed write to a subscriber.
type TransportError struct {
	SubscriberID string
	Transport    string
	Op           string
	Err          error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s subscriber %s: %s: %v", e.Transport, e.SubscriberID, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// lifecycle implements the open -> closed state machine shared by adapters.
type lifecycle struct {
	id        string
	transport string
	state     atomic.Int32
	done      chan struct{}
	once      sync.Once

	mu       sync.Mutex
	handlers []func()
	reason   error
}

func (l *lifecycle) init(transport string) {
	l.id = uuid.NewString()
	l.transport = transport
	l.done = make(chan struct{})
}

func (l *lifecycle) ID() string {
	return l.id
}

func (l *lifecycle) Transport() string {
	return l.transport
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

func (l *lifecycle) Done() <-chan struct{} {
	return l.done
}

// Err returns the reason the channel closed, if any.
func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

func (l *lifecycle) OnClose(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.State() == StateClosed {
		l.mu.Unlock()
		fn()
		return
	}
	l.handlers = append(l.handlers, fn)
	l.mu.Unlock()
}

func (l *lifecycle) Close(reason error) {
	l.close(reason)
}

// close performs the single terminal transition and reports whether this call made it.
func (l *lifecycle) close(reason error) bool {
	transitioned := false
	l.once.Do(func() {
		l.mu.Lock()
		l.reason = reason
		l.state.Store(int32(StateClosed))
		handlers := l.handlers
		l.handlers = nil
		close(l.done)
		l.mu.Unlock()

		for _, fn := range handlers {
			fn()
		}
		transitioned = true
	})
	return transitioned
}

func (l *lifecycle) transportError(op string, err error) *TransportError {
	return &TransportError{
		SubscriberID: l.id,
		Transport:    l.transport,
		Op:           op,
		Err:          err,
	}
}
