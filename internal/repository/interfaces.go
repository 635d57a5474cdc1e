package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	// UserRepository handles user credential state
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		// UpdatePassword stores the new hash and clears the refresh token
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error
		// RecordPasswordChange increments the change counter when the last
		// change is newer than windowStart, otherwise resets it to 1, and
		// stamps both change timestamps with at. Single conditional write.
		RecordPasswordChange(ctx context.Context, id uuid.UUID, at, windowStart time.Time) error
		SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	// PasswordHistoryRepository stores archived password hashes
	PasswordHistoryRepository interface {
		Create(ctx context.Context, entry *model.PasswordHistory) error
		// ListRecent returns at most limit entries created after since, newest first
		ListRecent(ctx context.Context, userID uuid.UUID, limit int, since time.Time) ([]*model.PasswordHistory, error)
		// DeleteBeyond keeps the newest keep entries for the user and deletes the rest
		DeleteBeyond(ctx context.Context, userID uuid.UUID, keep int) (int64, error)
		DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// ResetTokenRepository stores password reset tokens
	ResetTokenRepository interface {
		Create(ctx context.Context, token *model.PasswordResetToken) error
		DeleteUnusedByUser(ctx context.Context, userID uuid.UUID) (int64, error)
		// GetUsable returns the token only if it is unused and expires after now
		GetUsable(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error)
		// Consume flips used to true only if the token is still usable at now.
		// Exactly one concurrent caller succeeds; the rest get ErrNotFound.
		Consume(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error)
		// DeleteStale removes tokens expired before now and used tokens created before usedBefore
		DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error)
	}

	// ResetAttemptRepository is a per-user ledger of reset initiations
	ResetAttemptRepository interface {
		RecordAttempt(ctx context.Context, userID uuid.UUID, at time.Time) error
		CountAttempts(ctx context.Context, userID uuid.UUID, window time.Duration, reference time.Time) (int, error)
	}

	// HealthChecker reports store reachability
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)
