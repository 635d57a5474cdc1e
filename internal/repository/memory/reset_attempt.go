package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/yupeng0512/user-management/internal/repository"
)

// resetAttemptRepository keeps per-user attempt timestamps in go-cache so
// idle users age out without a sweep.
type resetAttemptRepository struct {
	mu     sync.Mutex
	cache  *cache.Cache
	window time.Duration
}

func NewResetAttemptRepository(window time.Duration) repository.ResetAttemptRepository {
	return &resetAttemptRepository{
		cache:  cache.New(window, 2*window),
		window: window,
	}
}

func (r *resetAttemptRepository) RecordAttempt(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := userID.String()
	var attempts []time.Time
	if v, ok := r.cache.Get(key); ok {
		attempts = v.([]time.Time)
	}
	attempts = append(trimBefore(attempts, at.Add(-r.window)), at)
	r.cache.Set(key, attempts, r.window)
	return nil
}

func (r *resetAttemptRepository) CountAttempts(ctx context.Context, userID uuid.UUID, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(userID.String())
	if !ok {
		return 0, nil
	}
	start := reference.Add(-window)
	count := 0
	for _, at := range v.([]time.Time) {
		if at.After(start) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func trimBefore(attempts []time.Time, cutoff time.Time) []time.Time {
	kept := make([]time.Time, 0, len(attempts)+1)
	for _, at := range attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}
