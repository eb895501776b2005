package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const streamMaxLen = 100000 // Keep last 100k events per stream

func streamKey(eventType string) string {
	return fmt.Sprintf("events:%s", eventType)
}

type RedisEventPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisEventPublisher(client *redis.Client, logger *zap.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{
		client: client,
		logger: logger,
	}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	return p.PublishBatch(ctx, []domain.DomainEvent{event})
}

// PublishBatch appends every event inside one MULTI/EXEC so consumers never see
// part of a batch.
func (p *RedisEventPublisher) PublishBatch(ctx context.Context, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	args := make([]*redis.XAddArgs, 0, len(events))
	for _, event := range events {
		a, err := xaddArgs(event)
		if err != nil {
			return err
		}
		args = append(args, a)
	}

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range args {
			pipe.XAdd(ctx, a)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("failed to publish events",
			zap.Error(err),
			zap.Int("count", len(events)),
			zap.String("first_event_id", events[0].GetEventID()),
		)
		return fmt.Errorf("failed to publish events: %w", err)
	}

	for _, event := range events {
		p.logger.Debug("event published",
			zap.String("event_type", event.GetEventType()),
			zap.String("event_id", event.GetEventID()),
			zap.String("aggregate_id", event.GetAggregateID()),
		)
	}
	return nil
}

func xaddArgs(event domain.DomainEvent) (*redis.XAddArgs, error) {
	eventData, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &redis.XAddArgs{
		Stream: streamKey(event.GetEventType()),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":     event.GetEventID(),
			"event_type":   event.GetEventType(),
			"aggregate_id": event.GetAggregateID(),
			"occurred_at":  event.GetOccurredAt().Unix(),
			"data":         string(eventData),
		},
	}, nil
}
