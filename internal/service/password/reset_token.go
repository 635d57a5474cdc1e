package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
	"github.com/yupeng0512/user-management/pkg/security"
)

// maxIssueAttempts bounds retries on the astronomically unlikely token collision
const maxIssueAttempts = 3

// TokenStore manages single-use, time-boxed reset tokens.
// Not found, expired and used tokens are reported identically as nil.
type TokenStore struct {
	tokens   repository.ResetTokenRepository
	attempts repository.ResetAttemptRepository
	policy   Policy
	now      func() time.Time
}

func NewTokenStore(tokens repository.ResetTokenRepository, attempts repository.ResetAttemptRepository, policy Policy, now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{
		tokens:   tokens,
		attempts: attempts,
		policy:   policy,
		now:      now,
	}
}

// Issue supersedes every unused token of the user and returns a fresh one.
// The delete runs before the insert so at most one usable token exists.
func (s *TokenStore) Issue(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) (*model.PasswordResetToken, error) {
	if _, err := s.tokens.DeleteUnusedByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to supersede reset tokens: %w", err)
	}

	now := s.now()
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		value, err := security.GenerateToken(security.ResetTokenBytes)
		if err != nil {
			return nil, err
		}

		token := &model.PasswordResetToken{
			ID:        uuid.New(),
			UserID:    userID,
			Token:     value,
			ExpiresAt: now.Add(s.policy.ResetTokenTTL),
			IPAddress: ipAddress,
			UserAgent: userAgent,
			CreatedAt: now,
		}
		err = s.tokens.Create(ctx, token)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store reset token: %w", err)
		}

		if err := s.attempts.RecordAttempt(ctx, userID, now); err != nil {
			return nil, fmt.Errorf("failed to record reset attempt: %w", err)
		}
		return token, nil
	}
	return nil, errors.New("failed to generate a unique reset token")
}

// Validate returns the token record if it is unused and unexpired, else nil
func (s *TokenStore) Validate(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	t, err := s.tokens.GetUsable(ctx, token, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate reset token: %w", err)
	}
	return t, nil
}

// Consume atomically marks the token used. Of several concurrent callers at
// most one gets a record; the rest get nil.
func (s *TokenStore) Consume(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	t, err := s.tokens.Consume(ctx, token, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return t, nil
}

// CheckFrequency reports whether the user may start another reset
func (s *TokenStore) CheckFrequency(ctx context.Context, userID uuid.UUID) (bool, error) {
	count, err := s.attempts.CountAttempts(ctx, userID, s.policy.ResetWindow, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to count reset attempts: %w", err)
	}
	return count < s.policy.MaxResetAttempts, nil
}

// DeleteUnused removes every unused token of the user
func (s *TokenStore) DeleteUnused(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.tokens.DeleteUnusedByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unused reset tokens: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes expired tokens and used tokens past their retention
func (s *TokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.tokens.DeleteStale(ctx, now, now.Add(-s.policy.UsedTokenRetention))
	if err != nil {
		return 0, fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	return n, nil
}
