package password

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
	"github.com/yupeng0512/user-management/pkg/security"
)

// HistoryLedger keeps the most recent password hashes of each user
type HistoryLedger struct {
	repo   repository.PasswordHistoryRepository
	hasher security.PasswordHasher
	policy Policy
	now    func() time.Time
}

func NewHistoryLedger(repo repository.PasswordHistoryRepository, hasher security.PasswordHasher, policy Policy, now func() time.Time) *HistoryLedger {
	if now == nil {
		now = time.Now
	}
	return &HistoryLedger{
		repo:   repo,
		hasher: hasher,
		policy: policy,
		now:    now,
	}
}

// Record archives passwordHash and evicts entries beyond the history depth
func (l *HistoryLedger) Record(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	entry := &model.PasswordHistory{
		ID:           uuid.New(),
		UserID:       userID,
		PasswordHash: passwordHash,
		CreatedAt:    l.now(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record password history: %w", err)
	}

	if _, err := l.repo.DeleteBeyond(ctx, userID, l.policy.HistoryDepth); err != nil {
		return fmt.Errorf("failed to trim password history: %w", err)
	}
	return nil
}

// Contains reports whether plaintext matches one of the user's recent hashes.
// Entries past the retention horizon are ignored even if the sweep has not
// removed them yet.
func (l *HistoryLedger) Contains(ctx context.Context, userID uuid.UUID, plaintext string) (bool, error) {
	since := l.now().Add(-l.policy.HistoryRetention)
	entries, err := l.repo.ListRecent(ctx, userID, l.policy.HistoryDepth, since)
	if err != nil {
		return false, fmt.Errorf("failed to load password history: %w", err)
	}

	for _, e := range entries {
		match, err := security.Matches(l.hasher, e.PasswordHash, plaintext)
		if err != nil {
			return false, fmt.Errorf("failed to compare password history: %w", err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// PurgeOlderThan deletes entries of all users older than the given number of days
func (l *HistoryLedger) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := l.now().AddDate(0, 0, -days)
	n, err := l.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge password history: %w", err)
	}
	return n, nil
}
