package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
)

// RedisBroker maps session topics onto Redis Pub/Sub channels so multiple
// service instances share one broadcast plane.
type RedisBroker struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisBroker(client *redis.Client, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, update models.StateUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal state update: %w", err)
	}
	if err := b.client.Publish(ctx, models.Topic(update.SessionID), payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, sessionID id.SessionID) (<-chan models.StateUpdate, func(), error) {
	topic := models.Topic(sessionID)
	pubsub := b.client.Subscribe(ctx, topic)

	// Force the subscription onto the wire before returning so callers
	// never miss updates published immediately after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	out := make(chan models.StateUpdate, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var update models.StateUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				b.logger.Warn("dropping malformed broadcast payload",
					"topic", topic,
					"error", err,
				)
				continue
			}
			select {
			case out <- update:
			default:
				// subscriber too slow; drop rather than block the reader
				b.logger.Warn("dropping broadcast for slow subscriber", "topic", topic)
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}
