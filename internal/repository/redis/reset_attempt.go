package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yupeng0512/user-management/internal/repository"
)

// ResetAttemptRepository records reset initiations in one sorted set per
// user, scored by UnixNano.
type ResetAttemptRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewResetAttemptRepository(client *redis.Client, keyPrefix string, ttl time.Duration) *ResetAttemptRepository {
	return &ResetAttemptRepository{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (r *ResetAttemptRepository) RecordAttempt(ctx context.Context, userID uuid.UUID, at time.Time) error {
	key := r.key(userID)
	// members must be unique or attempts at the same instant collapse
	member := redis.Z{
		Score:  float64(at.UnixNano()),
		Member: fmt.Sprintf("%d:%s", at.UnixNano(), uuid.NewString()),
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, member)
	if r.ttl > 0 {
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", at.Add(-r.ttl).UnixNano()))
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record reset attempt: %w", err)
	}
	return nil
}

func (r *ResetAttemptRepository) CountAttempts(ctx context.Context, userID uuid.UUID, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	min := fmt.Sprintf("(%d", reference.Add(-window).UnixNano())
	max := fmt.Sprintf("%d", reference.UnixNano())

	count, err := r.client.ZCount(ctx, r.key(userID), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset attempts: %w", err)
	}
	return int(count), nil
}

func (r *ResetAttemptRepository) key(userID uuid.UUID) string {
	if r.keyPrefix == "" {
		return userID.String()
	}
	return fmt.Sprintf("%s:%s", r.keyPrefix, userID)
}

var _ repository.ResetAttemptRepository = (*ResetAttemptRepository)(nil)
