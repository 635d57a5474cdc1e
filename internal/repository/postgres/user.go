package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
)

const userColumns = `id, username, email, password_hash, role, status, refresh_token,
	password_changed_at, password_change_count, last_password_change_date,
	last_login_at, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, role, status,
			password_changed_at, password_change_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.PasswordChangedAt,
		user.PasswordChangeCount,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if err = translate(err); err == repository.ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translate(err))
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", translate(err))
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", translate(err))
	}
	return &user, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	query := `
		UPDATE users SET
			password_hash = $1,
			password_changed_at = $2,
			refresh_token = NULL,
			updated_at = $2
		WHERE id = $3
	`

	if err := requireRows(r.db.ExecContext(ctx, query, passwordHash, changedAt, id)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (r *userRepository) RecordPasswordChange(ctx context.Context, id uuid.UUID, at, windowStart time.Time) error {
	query := `
		UPDATE users SET
			password_change_count = CASE
				WHEN last_password_change_date IS NOT NULL AND last_password_change_date > $2
				THEN password_change_count + 1
				ELSE 1
			END,
			last_password_change_date = $1,
			password_changed_at = $1,
			updated_at = $1
		WHERE id = $3
	`

	if err := requireRows(r.db.ExecContext(ctx, query, at, windowStart, id)); err != nil {
		return fmt.Errorf("failed to record password change: %w", err)
	}
	return nil
}

func (r *userRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	query := `UPDATE users SET refresh_token = $1 WHERE id = $2`

	if err := requireRows(r.db.ExecContext(ctx, query, token, id)); err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	if err := requireRows(r.db.ExecContext(ctx, query, at, id)); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
