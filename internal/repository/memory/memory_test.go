package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newUser(t *testing.T, repo repository.UserRepository) *model.User {
	t.Helper()
	u := &model.User{
		Base:     model.Base{ID: uuid.New(), CreatedAt: base, UpdatedAt: base},
		Username: "alice",
		Email:    "alice@example.com",
		Status:   model.UserStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestUserRepositoryDuplicate(t *testing.T) {
	repo := NewUserRepository(NewStore())
	newUser(t, repo)

	err := repo.Create(context.Background(), &model.User{Username: "ALICE", Email: "other@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := repo.GetByEmail(context.Background(), "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestUserRepositoryRecordPasswordChange(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewStore())
	u := newUser(t, repo)

	require.NoError(t, repo.RecordPasswordChange(ctx, u.ID, base, base.Add(-24*time.Hour)))
	require.NoError(t, repo.RecordPasswordChange(ctx, u.ID, base.Add(time.Hour), base.Add(-23*time.Hour)))

	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PasswordChangeCount)
	assert.Equal(t, base.Add(time.Hour), *got.LastPasswordChangeDate)
	assert.Equal(t, base.Add(time.Hour), got.PasswordChangedAt)

	later := base.Add(26 * time.Hour)
	require.NoError(t, repo.RecordPasswordChange(ctx, u.ID, later, later.Add(-24*time.Hour)))
	got, err = repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PasswordChangeCount)
}

func TestUserRepositoryUpdatePasswordClearsRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewStore())
	u := newUser(t, repo)

	token := "refresh"
	require.NoError(t, repo.SetRefreshToken(ctx, u.ID, &token))
	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new-hash", base))

	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RefreshToken)
	assert.Equal(t, "new-hash", got.PasswordHash)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, uuid.New(), "x", base), repository.ErrNotFound)
}

func TestPasswordHistoryKeepsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewPasswordHistoryRepository(NewStore())
	userID := uuid.New()

	for i := 0; i < 6; i++ {
		require.NoError(t, repo.Create(ctx, &model.PasswordHistory{
			UserID:       userID,
			PasswordHash: string(rune('a' + i)),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	removed, err := repo.DeleteBeyond(ctx, userID, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	entries, err := repo.ListRecent(ctx, userID, 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "f", entries[0].PasswordHash)
	assert.Equal(t, "b", entries[4].PasswordHash)
}

func TestPasswordHistoryEqualTimestampsOrderByInsertion(t *testing.T) {
	ctx := context.Background()
	repo := NewPasswordHistoryRepository(NewStore())
	userID := uuid.New()

	for _, h := range []string{"first", "second"} {
		require.NoError(t, repo.Create(ctx, &model.PasswordHistory{UserID: userID, PasswordHash: h, CreatedAt: base}))
	}

	entries, err := repo.ListRecent(ctx, userID, 1, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].PasswordHash)
}

func TestPasswordHistoryDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewPasswordHistoryRepository(NewStore())
	userID := uuid.New()

	require.NoError(t, repo.Create(ctx, &model.PasswordHistory{UserID: userID, PasswordHash: "old", CreatedAt: base.AddDate(-2, 0, 0)}))
	require.NoError(t, repo.Create(ctx, &model.PasswordHistory{UserID: userID, PasswordHash: "new", CreatedAt: base}))

	removed, err := repo.DeleteOlderThan(ctx, base.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	entries, err := repo.ListRecent(ctx, userID, 5, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].PasswordHash)
}

func TestResetTokenConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewResetTokenRepository(NewStore())
	tok := &model.PasswordResetToken{
		UserID:    uuid.New(),
		Token:     "tok",
		ExpiresAt: base.Add(30 * time.Minute),
		CreatedAt: base,
	}
	require.NoError(t, repo.Create(ctx, tok))

	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Consume(ctx, "tok", base); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	_, err := repo.GetUsable(ctx, "tok", base)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResetTokenExpiredIsNotUsable(t *testing.T) {
	ctx := context.Background()
	repo := NewResetTokenRepository(NewStore())
	require.NoError(t, repo.Create(ctx, &model.PasswordResetToken{
		UserID:    uuid.New(),
		Token:     "tok",
		ExpiresAt: base,
		CreatedAt: base.Add(-30 * time.Minute),
	}))

	_, err := repo.GetUsable(ctx, "tok", base)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.Consume(ctx, "tok", base)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResetTokenDeleteUnusedAndStale(t *testing.T) {
	ctx := context.Background()
	repo := NewResetTokenRepository(NewStore())
	userID := uuid.New()

	require.NoError(t, repo.Create(ctx, &model.PasswordResetToken{UserID: userID, Token: "unused", ExpiresAt: base.Add(time.Hour), CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &model.PasswordResetToken{UserID: userID, Token: "used", ExpiresAt: base.Add(time.Hour), CreatedAt: base.Add(-25 * time.Hour), Used: true}))
	require.NoError(t, repo.Create(ctx, &model.PasswordResetToken{UserID: uuid.New(), Token: "expired", ExpiresAt: base.Add(-time.Minute), CreatedAt: base.Add(-time.Hour)}))
	assert.ErrorIs(t, repo.Create(ctx, &model.PasswordResetToken{Token: "unused"}), repository.ErrDuplicate)

	removed, err := repo.DeleteUnusedByUser(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	removed, err = repo.DeleteStale(ctx, base, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
}

func TestResetAttemptWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewResetAttemptRepository(time.Hour)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordAttempt(ctx, userID, base.Add(time.Duration(i)*time.Minute)))
	}

	count, err := repo.CountAttempts(ctx, userID, time.Hour, base.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = repo.CountAttempts(ctx, userID, time.Hour, base.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountAttempts(ctx, uuid.New(), time.Hour, base)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = repo.CountAttempts(ctx, userID, 0, base)
	assert.Error(t, err)
}
