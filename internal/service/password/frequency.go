package password

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/repository"
)

type FrequencyDecision struct {
	Allowed         bool
	Reason          string
	NextAllowedTime *time.Time
}

// FrequencyGuard caps password changes per user in a sliding window.
// CheckAllowed only reads; RecordChange is the single write.
type FrequencyGuard struct {
	users  repository.UserRepository
	policy Policy
	now    func() time.Time
}

func NewFrequencyGuard(users repository.UserRepository, policy Policy, now func() time.Time) *FrequencyGuard {
	if now == nil {
		now = time.Now
	}
	return &FrequencyGuard{
		users:  users,
		policy: policy,
		now:    now,
	}
}

func (g *FrequencyGuard) CheckAllowed(ctx context.Context, userID uuid.UUID) (*FrequencyDecision, error) {
	user, err := g.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	last := user.LastPasswordChangeDate
	windowStart := g.now().Add(-g.policy.ChangeWindow)
	if last != nil && last.After(windowStart) && user.PasswordChangeCount >= g.policy.MaxDailyChanges {
		next := last.Add(g.policy.ChangeWindow)
		return &FrequencyDecision{
			Allowed:         false,
			Reason:          fmt.Sprintf("password may be changed at most %d times in 24 hours", g.policy.MaxDailyChanges),
			NextAllowedTime: &next,
		}, nil
	}
	return &FrequencyDecision{Allowed: true}, nil
}

func (g *FrequencyGuard) RecordChange(ctx context.Context, userID uuid.UUID) error {
	now := g.now()
	if err := g.users.RecordPasswordChange(ctx, userID, now, now.Add(-g.policy.ChangeWindow)); err != nil {
		return fmt.Errorf("failed to record password change: %w", err)
	}
	return nil
}
