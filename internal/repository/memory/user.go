package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
)

type userRepository struct {
	*Store
}

func NewUserRepository(s *Store) repository.UserRepository {
	return &userRepository{s}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.Username, user.Username) {
			return repository.ErrDuplicate
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = changedAt
	u.RefreshToken = nil
	u.UpdatedAt = changedAt
	return nil
}

func (r *userRepository) RecordPasswordChange(ctx context.Context, id uuid.UUID, at, windowStart time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.LastPasswordChangeDate != nil && u.LastPasswordChangeDate.After(windowStart) {
		u.PasswordChangeCount++
	} else {
		u.PasswordChangeCount = 1
	}
	stamp := at
	u.LastPasswordChangeDate = &stamp
	u.PasswordChangedAt = at
	u.UpdatedAt = at
	return nil
}

func (r *userRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if token == nil {
		u.RefreshToken = nil
		return nil
	}
	t := *token
	u.RefreshToken = &t
	return nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	stamp := at
	u.LastLoginAt = &stamp
	return nil
}

func copyUser(u *model.User) *model.User {
	cp := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		cp.RefreshToken = &t
	}
	if u.LastPasswordChangeDate != nil {
		t := *u.LastPasswordChangeDate
		cp.LastPasswordChangeDate = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}
