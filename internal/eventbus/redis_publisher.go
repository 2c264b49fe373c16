package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/matthewbaird/compliance/internal/event"
)

// StreamAdder is the subset of *redis.Client the publisher needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher forwards domain events to a Redis stream so services
// outside this process can follow compliance changes.
type RedisPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewRedisPublisher creates a publisher appending to stream. A positive
// maxLen trims the stream approximately to that length.
func NewRedisPublisher(client StreamAdder, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", evt.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":   evt.ID,
			"event_type": evt.EventType,
			"tenant_id":  evt.TenantID,
			"data":       string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publishing event %s to %s: %w", evt.ID, p.stream, err)
	}
	return nil
}
