package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
)

type passwordHistoryRepository struct {
	*Store
}

func NewPasswordHistoryRepository(s *Store) repository.PasswordHistoryRepository {
	return &passwordHistoryRepository{s}
}

func (r *passwordHistoryRepository) Create(ctx context.Context, entry *model.PasswordHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	cp := *entry

	// entries are kept newest first; a later insert with an equal timestamp counts as newer
	entries := r.history[entry.UserID]
	i := sort.Search(len(entries), func(i int) bool {
		return !entries[i].CreatedAt.After(cp.CreatedAt)
	})
	entries = append(entries, nil)
	copy(entries[i+1:], entries[i:])
	entries[i] = &cp
	r.history[entry.UserID] = entries
	return nil
}

func (r *passwordHistoryRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int, since time.Time) ([]*model.PasswordHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.PasswordHistory
	for _, e := range r.history[userID] {
		if len(out) >= limit {
			break
		}
		if !e.CreatedAt.After(since) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *passwordHistoryRepository) DeleteBeyond(ctx context.Context, userID uuid.UUID, keep int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.history[userID]
	if len(entries) <= keep {
		return 0, nil
	}
	removed := len(entries) - keep
	r.history[userID] = entries[:keep:keep]
	return int64(removed), nil
}

func (r *passwordHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for userID, entries := range r.history {
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.history, userID)
			continue
		}
		r.history[userID] = kept
	}
	return removed, nil
}
