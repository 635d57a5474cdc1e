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

type passwordHistoryRepository struct {
	BaseRepository
}

func NewPasswordHistoryRepository(base BaseRepository) repository.PasswordHistoryRepository {
	return &passwordHistoryRepository{base}
}

func (r *passwordHistoryRepository) Create(ctx context.Context, entry *model.PasswordHistory) error {
	query := `
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.PasswordHash, entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to create password history: %w", err)
	}
	return nil
}

func (r *passwordHistoryRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int, since time.Time) ([]*model.PasswordHistory, error) {
	query, args, err := psql.
		Select("id", "user_id", "password_hash", "created_at").
		From("password_history").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Gt{"created_at": since}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var entries []*model.PasswordHistory
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list password history: %w", err)
	}
	return entries, nil
}

func (r *passwordHistoryRepository) DeleteBeyond(ctx context.Context, userID uuid.UUID, keep int) (int64, error) {
	query := `
		DELETE FROM password_history
		WHERE user_id = $1
		AND id NOT IN (
			SELECT id FROM password_history
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`

	result, err := r.db.ExecContext(ctx, query, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim password history: %w", err)
	}
	return result.RowsAffected()
}

func (r *passwordHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := r.execBuilder(ctx, psql.
		Delete("password_history").
		Where(sq.Lt{"created_at": cutoff}))
	if err != nil {
		return 0, fmt.Errorf("failed to purge password history: %w", err)
	}
	return rows, nil
}
