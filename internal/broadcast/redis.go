package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"aquasim-server/internal/shared/errors"
	"aquasim-server/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher sends JSON events with PUBLISH on <prefix><topic>
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client, prefix string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis_publisher"),
	}
}

func (p *RedisPublisher) Channel(kind telemetry.Kind) string {
	return p.prefix + kind.String()
}

func (p *RedisPublisher) Publish(ctx context.Context, kind telemetry.Kind, record any) error {
	event, err := NewEvent(kind, record, time.Now())
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.Channel(kind), payload).Result()
	if err != nil {
		return errors.WrapExternal("failed to publish to "+p.Channel(kind), err)
	}

	p.logger.Debug("Event published", "channel", p.Channel(kind), "receivers", receivers)
	return nil
}

// Relay feeds a Hub from the Redis channels so every replica streams the
// events of the single instance running the scheduler.
type Relay struct {
	client *redis.Client
	prefix string
	hub    *Hub
	logger *slog.Logger
}

func NewRelay(client *redis.Client, prefix string, hub *Hub, logger *slog.Logger) *Relay {
	return &Relay{
		client: client,
		prefix: prefix,
		hub:    hub,
		logger: logger.With("component", "redis_relay"),
	}
}

// Run blocks until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	channels := []string{
		r.prefix + telemetry.KindTrucha.String(),
		r.prefix + telemetry.KindLechuga.String(),
	}

	sub := r.client.Subscribe(ctx, channels...)
	defer func() {
		if err := sub.Close(); err != nil {
			r.logger.Warn("Failed to close subscription", "error", err)
		}
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.WrapExternal(fmt.Sprintf("failed to subscribe to %v", channels), err)
	}
	r.logger.Info("Relaying Redis events to stream subscribers", "channels", channels)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("Dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			r.hub.Broadcast(event)
		}
	}
}
