package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel the realtime layer listens on.
const DefaultChannel = "heritage:events"

// Publisher publishes events on a redis channel.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher constructs a publisher. An empty channel uses DefaultChannel.
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Channel returns the channel events are published on.
func (p *Publisher) Channel() string { return p.channel }

// Emit implements Emitter by publishing directly.
func (p *Publisher) Emit(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", ev.Type, err)
	}
	return nil
}

// HandleDeliverTask is the asynq handler for TaskDeliver.
func (p *Publisher) HandleDeliverTask(ctx context.Context, t *asynq.Task) error {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("notify: decode event: %v: %w", err, asynq.SkipRetry)
	}
	return p.Emit(ctx, ev)
}
