package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
)

type resetTokenRepository struct {
	*Store
}

func NewResetTokenRepository(s *Store) repository.ResetTokenRepository {
	return &resetTokenRepository{s}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *model.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[token.Token]; exists {
		return repository.ErrDuplicate
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	cp := *token
	r.tokens[token.Token] = &cp
	return nil
}

func (r *resetTokenRepository) DeleteUnusedByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key, t := range r.tokens {
		if t.UserID == userID && !t.Used {
			delete(r.tokens, key)
			removed++
		}
	}
	return removed, nil
}

func (r *resetTokenRepository) GetUsable(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[token]
	if !ok || !t.IsUsable(now) {
		return nil, repository.ErrNotFound
	}
	return copyToken(t), nil
}

func (r *resetTokenRepository) Consume(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[token]
	if !ok || !t.IsUsable(now) {
		return nil, repository.ErrNotFound
	}
	usedAt := now
	t.Used = true
	t.UsedAt = &usedAt
	return copyToken(t), nil
}

func (r *resetTokenRepository) DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key, t := range r.tokens {
		if t.ExpiresAt.Before(now) || (t.Used && t.CreatedAt.Before(usedBefore)) {
			delete(r.tokens, key)
			removed++
		}
	}
	return removed, nil
}

func copyToken(t *model.PasswordResetToken) *model.PasswordResetToken {
	cp := *t
	if t.UsedAt != nil {
		u := *t.UsedAt
		cp.UsedAt = &u
	}
	return &cp
}
