package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope is one broadcast as it travels between API instances.
type Envelope struct {
	Rooms    []string        `json:"rooms"`
	ExceptID string          `json:"except_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Broker fans broadcasts out to every API instance, including the sender.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe confirms the subscription before returning. The channel
	// closes when ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Envelope, error)
}

// RedisBroker implements Broker over Redis pub/sub.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBroker constructs a broker on channel.
func NewRedisBroker(client *redis.Client, channel string, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, channel: channel, logger: logger}
}

// Publish sends env to every subscriber.
func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe listens on the broker channel.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Envelope, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.logger.Warn("discarding malformed envelope", zap.Error(err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	b.logger.Info("realtime fan-out subscribed", zap.String("channel", b.channel))
	return out, nil
}
