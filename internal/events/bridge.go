package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultChannel = "tool-relay-events"

// Bridge mirrors locally published events to other relay instances through
// Redis pub/sub and hands remote events to a local deliver func.
type Bridge struct {
	client redis.UniversalClient
	logger zerolog.Logger
	ch     string
	origin string
}

// BridgeOptions configure the bridge.
type BridgeOptions struct {
	Client  redis.UniversalClient
	Logger  zerolog.Logger
	Channel string
}

type envelope struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// NewBridge returns nil when no Redis client is configured.
func NewBridge(opts BridgeOptions) *Bridge {
	if opts.Client == nil {
		return nil
	}
	channel := opts.Channel
	if channel == "" {
		channel = defaultChannel
	}
	return &Bridge{
		client: opts.Client,
		logger: opts.Logger,
		ch:     channel,
		origin: uuid.NewString(),
	}
}

// Publish mirrors evt to Redis tagged with this instance's origin.
func (b *Bridge) Publish(ctx context.Context, evt Event) error {
	if b == nil {
		return nil
	}
	payload, err := b.encode(evt)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.ch, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel until ctx is done, passing events published by
// other instances to deliver.
func (b *Bridge) Run(ctx context.Context, deliver func(context.Context, Event)) {
	if b == nil {
		return
	}
	pubsub := b.client.Subscribe(ctx, b.ch)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn().Err(err).Str("channel", b.ch).Msg("redis subscriber error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		evt, remote, err := b.decode([]byte(msg.Payload))
		if err != nil {
			b.logger.Warn().Err(err).Msg("invalid bridge payload")
			continue
		}
		if !remote {
			continue
		}
		deliver(ctx, evt)
	}
}

func (b *Bridge) encode(evt Event) ([]byte, error) {
	if len(evt.body) == 0 {
		return nil, errors.New("empty event")
	}
	payload, err := json.Marshal(envelope{Origin: b.origin, Event: evt.body})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return payload, nil
}

// decode reports remote=false for messages this instance published itself.
func (b *Bridge) decode(payload []byte) (Event, bool, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, false, err
	}
	if env.Origin == b.origin {
		return Event{}, false, nil
	}
	var evt Event
	if err := json.Unmarshal(env.Event, &evt); err != nil {
		return Event{}, false, err
	}
	return evt, true, nil
}
