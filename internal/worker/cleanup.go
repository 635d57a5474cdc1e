package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/pkg/metrics"
)

// TokenPurger drops expired and long-used reset tokens
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// HistoryPurger drops archived password hashes past retention
type HistoryPurger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

type CleanupWorker struct {
	tokens          TokenPurger
	history         HistoryPurger
	retentionDays   int
	cleanupInterval time.Duration
	metrics         *metrics.Metrics
}

func NewCleanupWorker(tokens TokenPurger, history HistoryPurger, retentionDays int, cleanupInterval time.Duration, m *metrics.Metrics) *CleanupWorker {
	return &CleanupWorker{
		tokens:          tokens,
		history:         history,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		metrics:         m,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done
func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Password cleanup sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep. A failing step does not skip the other.
func (w *CleanupWorker) RunOnce(ctx context.Context) error {
	var errs []error

	n, err := w.tokens.PurgeExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge reset tokens: %w", err))
	} else {
		w.metrics.Purged("reset_tokens", n)
	}

	if w.retentionDays > 0 {
		n, err = w.history.PurgeOlderThan(ctx, w.retentionDays)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to purge password history: %w", err))
		} else {
			w.metrics.Purged("password_history", n)
		}
	}

	return errors.Join(errs...)
}
