package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
)

const resetTokenColumns = `id, user_id, token, expires_at, used, used_at, ip_address, user_agent, created_at`

type resetTokenRepository struct {
	BaseRepository
}

func NewResetTokenRepository(base BaseRepository) repository.ResetTokenRepository {
	return &resetTokenRepository{base}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *model.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (
			id, user_id, token, expires_at, used, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.Used,
		token.IPAddress,
		token.UserAgent,
		token.CreatedAt,
	)
	if err != nil {
		if err = translate(err); err == repository.ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

func (r *resetTokenRepository) DeleteUnusedByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	rows, err := r.execBuilder(ctx, psql.
		Delete("password_reset_tokens").
		Where(sq.Eq{"user_id": userID, "used": false}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete unused reset tokens: %w", err)
	}
	return rows, nil
}

func (r *resetTokenRepository) GetUsable(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error) {
	query := `
		SELECT ` + resetTokenColumns + `
		FROM password_reset_tokens
		WHERE token = $1
		AND used = FALSE
		AND expires_at > $2
	`

	var t model.PasswordResetToken
	if err := r.db.GetContext(ctx, &t, query, token, now); err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", translate(err))
	}
	return &t, nil
}

// Consume is a single conditional UPDATE so two concurrent confirmations
// cannot both observe the token as unused.
func (r *resetTokenRepository) Consume(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error) {
	query := `
		UPDATE password_reset_tokens
		SET used = TRUE, used_at = $2
		WHERE token = $1
		AND used = FALSE
		AND expires_at > $2
		RETURNING ` + resetTokenColumns

	var t model.PasswordResetToken
	if err := r.db.GetContext(ctx, &t, query, token, now); err != nil {
		return nil, fmt.Errorf("failed to consume reset token: %w", translate(err))
	}
	return &t, nil
}

func (r *resetTokenRepository) DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error) {
	rows, err := r.execBuilder(ctx, psql.
		Delete("password_reset_tokens").
		Where(sq.Or{
			sq.Lt{"expires_at": now},
			sq.And{
				sq.Eq{"used": true},
				sq.Lt{"created_at": usedBefore},
			},
		}))
	if err != nil {
		return 0, fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	return rows, nil
}
