// Package memory provides process-local repositories for development and tests.
// All repositories built from one Store share a single lock, so each method is
// one atomic step just like a single SQL statement.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yupeng0512/user-management/internal/model"
)

type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*model.User
	history map[uuid.UUID][]*model.PasswordHistory
	tokens  map[string]*model.PasswordResetToken
}

func NewStore() *Store {
	return &Store{
		users:   make(map[uuid.UUID]*model.User),
		history: make(map[uuid.UUID][]*model.PasswordHistory),
		tokens:  make(map[string]*model.PasswordResetToken),
	}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
