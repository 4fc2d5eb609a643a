package relay

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	lifecycle

	mu       sync.Mutex
	received []events.Event
	sendErr  error
	block    bool
	panics   bool
}

func newFakeChannel() *fakeChannel {
	c := &fakeChannel{}
	c.init("fake")
	return c
}

func (f *fakeChannel) Send(ctx context.Context, evt events.Event) error {
	if f.State() == StateClosed {
		return f.transportError("send", ErrChannelClosed)
	}
	if f.panics {
		panic("socket exploded")
	}
	if f.block {
		<-ctx.Done()
		te := f.transportError("write", ErrWriteTimeout)
		f.Close(te)
		return te
	}
	if f.sendErr != nil {
		te := f.transportError("write", f.sendErr)
		f.Close(te)
		return te
	}
	f.mu.Lock()
	f.received = append(f.received, evt)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) delivered() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.received...)
}

func newTestDispatcher(reg *Registry, timeout time.Duration) *Dispatcher {
	return NewDispatcher(reg, DispatcherOptions{WriteTimeout: timeout, Logger: zerolog.Nop()})
}

func toolResult(t *testing.T) events.Event {
	t.Helper()
	evt, err := events.ToolResult("add", map[string]interface{}{"a": 2.5, "b": 3.5}, "2.5 + 3.5 = 6", time.Now())
	require.NoError(t, err)
	return evt
}

func TestRegistrySizeTracksMembership(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	pool := make([]*fakeChannel, 8)
	for i := range pool {
		pool[i] = newFakeChannel()
	}
	live := map[*fakeChannel]bool{}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		ch := pool[rng.Intn(len(pool))]
		if rng.Intn(2) == 0 {
			reg.Register(ch)
			live[ch] = true
		} else {
			removed := reg.Unregister(ch)
			assert.Equal(t, live[ch], removed)
			delete(live, ch)
		}
		require.Equal(t, len(live), reg.Size())
	}
}

func TestRegistryDuplicateRegisterAndUnregister(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	var sizes []int
	reg.OnChange(func(n int) { sizes = append(sizes, n) })

	ch := newFakeChannel()
	reg.Register(ch)
	reg.Register(ch)
	assert.Equal(t, 1, reg.Size())

	assert.True(t, reg.Unregister(ch))
	assert.False(t, reg.Unregister(ch))
	assert.Equal(t, 0, reg.Size())
	assert.Equal(t, []int{1, 0}, sizes)
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	subs := []*fakeChannel{newFakeChannel(), newFakeChannel(), newFakeChannel()}
	for _, s := range subs {
		reg.Register(s)
	}

	report := newTestDispatcher(reg, time.Second).Publish(context.Background(), toolResult(t))

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Succeeded)
	assert.Empty(t, report.Failed)
	for _, s := range subs {
		got := s.delivered()
		require.Len(t, got, 1)
		assert.Equal(t, events.TypeToolResult, got[0].Type)
	}
}

func TestPublishIsolatesFailingSubscriber(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	broken := newFakeChannel()
	broken.sendErr = errors.New("connection reset by peer")
	healthy := newFakeChannel()
	reg.Register(broken)
	reg.Register(healthy)

	report := newTestDispatcher(reg, time.Second).Publish(context.Background(), toolResult(t))

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, broken.ID(), report.Failed[0].SubscriberID)
	assert.Contains(t, report.Failed[0].Reason, "connection reset by peer")

	assert.Equal(t, 1, reg.Size())
	assert.Equal(t, StateClosed, broken.State())
	assert.Len(t, healthy.delivered(), 1)
}

func TestPublishSkipsUnregisteredSubscribers(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	d := newTestDispatcher(reg, time.Second)
	gone := newFakeChannel()
	stays := newFakeChannel()
	reg.Register(gone)
	reg.Register(stays)

	d.Publish(context.Background(), toolResult(t))
	reg.Unregister(gone)
	d.Publish(context.Background(), toolResult(t))
	d.Publish(context.Background(), toolResult(t))

	assert.Len(t, gone.delivered(), 1)
	assert.Len(t, stays.delivered(), 3)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	report := newTestDispatcher(NewRegistry(), time.Second).Publish(context.Background(), toolResult(t))
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, report.Succeeded)
	assert.Empty(t, report.Failed)
}

func TestPublishBoundsSlowSubscriber(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	slow := newFakeChannel()
	slow.block = true
	fast := newFakeChannel()
	reg.Register(slow)
	reg.Register(fast)

	start := time.Now()
	report := newTestDispatcher(reg, 50*time.Millisecond).Publish(context.Background(), toolResult(t))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, slow.ID(), report.Failed[0].SubscriberID)
	assert.Equal(t, 1, reg.Size())
	assert.Len(t, fast.delivered(), 1)
}

func TestPublishRecoversFromPanickingSubscriber(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	bad := newFakeChannel()
	bad.panics = true
	good := newFakeChannel()
	reg.Register(bad)
	reg.Register(good)

	report := newTestDispatcher(reg, time.Second).Publish(context.Background(), toolResult(t))

	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "panic")
	assert.Equal(t, StateClosed, bad.State())
	assert.Len(t, good.delivered(), 1)
}

func TestPublishIgnoresCanceledPublisherContext(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sub := newFakeChannel()
	reg.Register(sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := newTestDispatcher(reg, time.Second).Publish(ctx, toolResult(t))

	assert.Equal(t, 1, report.Succeeded)
	assert.Len(t, sub.delivered(), 1)
}

func TestPublishPreservesOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sub := newFakeChannel()
	reg.Register(sub)
	d := newTestDispatcher(reg, time.Second)

	var ids []string
	for i := 0; i < 10; i++ {
		evt := toolResult(t)
		ids = append(ids, evt.ID)
		d.Publish(context.Background(), evt)
	}

	got := sub.delivered()
	require.Len(t, got, 10)
	for i, evt := range got {
		assert.Equal(t, ids[i], evt.ID)
	}
}

func TestShutdownClosesEveryChannel(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	a, b := newFakeChannel(), newFakeChannel()
	reg.Register(a)
	reg.Register(b)

	n := newTestDispatcher(reg, time.Second).Shutdown()

	assert.Equal(t, 2, n)
	assert.Equal(t, 0, reg.Size())
	assert.ErrorIs(t, a.Err(), ErrRelayShutdown)
	assert.Equal(t, StateClosed, b.State())
}

func TestLifecycleOnCloseRunsOnce(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	calls := 0
	ch.OnClose(func() { calls++ })

	assert.Equal(t, StateOpen, ch.State())
	ch.Close(errors.New("first"))
	ch.Close(errors.New("second"))

	assert.Equal(t, 1, calls)
	assert.EqualError(t, ch.Err(), "first")
	select {
	case <-ch.Done():
	default:
		t.Fatal("expected done channel to be closed")
	}

	late := 0
	ch.OnClose(func() { late++ })
	assert.Equal(t, 1, late)

	err := ch.Send(context.Background(), toolResult(t))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestOnCloseUnregistersFromRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	ch := newFakeChannel()
	ch.OnClose(func() { reg.Unregister(ch) })
	reg.Register(ch)

	ch.Close(nil)
	assert.Equal(t, 0, reg.Size())
}

func TestHealthReporter(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(newFakeChannel())
	reg.Register(newFakeChannel())

	h := NewHealthReporter(reg)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	report := h.Report()
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 2, report.Clients)
	assert.Equal(t, fixed, report.Timestamp)
}
