package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yupeng0512/user-management/pkg/circuitbreaker"
	"github.com/yupeng0512/user-management/pkg/messaging"
)

// pollTimeout bounds each blocking pop so cancellation is noticed promptly
const pollTimeout = time.Second

// RedisBroker queues messages on Redis lists. Unlike pub/sub, messages
// published while no consumer runs are kept until one pops them.
type RedisBroker struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger zerolog.Logger
}

func NewRedisBroker(client *redis.Client, logger zerolog.Logger) messaging.Broker {
	return &RedisBroker{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:                "redis-broker",
			MaxRequests:         1,
			Interval:            10 * time.Second,
			Timeout:             5 * time.Second,
			ConsecutiveFailures: 5,
		}),
		logger: logger,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.cb.Execute(func() error {
		return b.client.LPush(ctx, channel, payload).Err()
	})
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	msgChan := make(chan []byte, 100)

	go func() {
		defer close(msgChan)

		for {
			if ctx.Err() != nil {
				return
			}

			// BRPOP returns [key, value]
			res, err := b.client.BRPop(ctx, pollTimeout, channel).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.logger.Error().Err(err).Str("channel", channel).Msg("Failed to pop message")
				select {
				case <-ctx.Done():
					return
				case <-time.After(pollTimeout):
				}
				continue
			}

			select {
			case msgChan <- []byte(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
