package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/oremus-labs/ol-tool-relay/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency caps how many subscribers are written to in parallel.
const DefaultConcurrency = 32

// DeliveryFailure records one subscriber that could not be reached.
type DeliveryFailure struct {
	SubscriberID string `json:"subscriberId"`
	Transport    string `json:"transport"`
	Reason       string `json:"reason"`
}

// DeliveryReport summarizes a Publish call.
type DeliveryReport struct {
	EventID   string            `json:"eventId"`
	Type      string            `json:"type"`
	Attempted int               `json:"attempted"`
	Succeeded int               `json:"succeeded"`
	Failed    []DeliveryFailure `json:"failed,omitempty"`
}

// DispatcherOptions configure a Dispatcher.
type DispatcherOptions struct {
	WriteTimeout time.Duration
	Concurrency  int
	Logger       zerolog.Logger
}

// Dispatcher fans events out to every channel in a Registry.
type Dispatcher struct {
	registry     *Registry
	writeTimeout time.Duration
	concurrency  int
	logger       zerolog.Logger
	tracer       trace.Tracer

	// mu keeps events in Publish call order for each subscriber.
	mu sync.Mutex
}

// NewDispatcher creates a dispatcher bound to registry.
func NewDispatcher(registry *Registry, opts DispatcherOptions) *Dispatcher {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		registry:     registry,
		writeTimeout: opts.WriteTimeout,
		concurrency:  opts.Concurrency,
		logger:       opts.Logger,
		tracer:       otel.Tracer("github.com/oremus-labs/ol-tool-relay/internal/relay"),
	}
}

// Publish delivers evt to a snapshot of the registry. Subscribers whose send
// fails are unregistered and closed; the rest still receive the event.
// Publish never fails as a whole.
func (d *Dispatcher) Publish(ctx context.Context, evt events.Event) DeliveryReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Subscriber writes must not be cut short by the publisher going away.
	ctx = context.WithoutCancel(ctx)
	ctx, span := d.tracer.Start(ctx, "relay.publish", trace.WithAttributes(
		attribute.String("event.type", evt.Type),
		attribute.String("event.id", evt.ID),
	))
	defer span.End()

	start := time.Now()
	members := d.registry.Snapshot()
	report := DeliveryReport{
		EventID:   evt.ID,
		Type:      evt.Type,
		Attempted: len(members),
	}

	results := make([]error, len(members))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, ch := range members {
		g.Go(func() error {
			results[i] = d.deliver(ctx, ch, evt)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		ch := members[i]
		metrics.ObserveDelivery(ch.Transport(), err == nil)
		if err == nil {
			report.Succeeded++
			continue
		}
		report.Failed = append(report.Failed, DeliveryFailure{
			SubscriberID: ch.ID(),
			Transport:    ch.Transport(),
			Reason:       err.Error(),
		})
	}

	metrics.ObservePublish(evt.Type, time.Since(start))
	span.SetAttributes(
		attribute.Int("relay.attempted", report.Attempted),
		attribute.Int("relay.succeeded", report.Succeeded),
	)
	if len(report.Failed) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d deliveries failed", len(report.Failed)))
	}
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, evt events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()

	err := safeSend(ctx, ch, evt)
	if err == nil {
		return nil
	}

	d.registry.Unregister(ch)
	ch.Close(err)
	d.logger.Warn().
		Err(err).
		Str("subscriber", ch.ID()).
		Str("transport", ch.Transport()).
		Str("event_id", evt.ID).
		Int("remaining", d.registry.Size()).
		Msg("dropping subscriber after failed delivery")
	return err
}

func safeSend(ctx context.Context, ch Channel, evt events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransportError{
				SubscriberID: ch.ID(),
				Transport:    ch.Transport(),
				Op:           "send",
				Err:          fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return ch.Send(ctx, evt)
}

// Shutdown closes and unregisters every channel.
func (d *Dispatcher) Shutdown() int {
	members := d.registry.Snapshot()
	for _, ch := range members {
		d.registry.Unregister(ch)
		ch.Close(ErrRelayShutdown)
	}
	return len(members)
}

// Registry exposes the registry the dispatcher publishes to.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}
