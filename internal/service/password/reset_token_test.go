package password

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenStore(f *fixture) *TokenStore {
	return NewTokenStore(f.tokens, f.attempts, DefaultPolicy(), f.clock.Now)
}

func TestTokenStoreIssue(t *testing.T) {
	f := newFixture()
	store := newTokenStore(f)
	userID := uuid.New()

	token, err := store.Issue(context.Background(), userID, "10.0.0.1", "curl/8")
	require.NoError(t, err)

	assert.Len(t, token.Token, 64)
	assert.Equal(t, userID, token.UserID)
	assert.False(t, token.Used)
	assert.True(t, token.ExpiresAt.Equal(f.clock.Now().Add(30*time.Minute)))
	assert.Equal(t, "10.0.0.1", token.IPAddress)
	assert.Equal(t, "curl/8", token.UserAgent)
}

func TestTokenStoreSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	store := newTokenStore(f)

	token, err := store.Issue(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	first, err := store.Consume(ctx, token.Token)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.Used)
	require.NotNil(t, first.UsedAt)

	second, err := store.Consume(ctx, token.Token)
	require.NoError(t, err)
	assert.Nil(t, second)

	validated, err := store.Validate(ctx, token.Token)
	require.NoError(t, err)
	assert.Nil(t, validated)
}

func TestTokenStoreConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	store := newTokenStore(f)

	token, err := store.Issue(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Consume(ctx, token.Token)
			assert.NoError(t, err)
			if got != nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestTokenStoreSupersession(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	store := newTokenStore(f)
	userID := uuid.New()

	first, err := store.Issue(ctx, userID, "", "")
	require.NoError(t, err)
	second, err := store.Issue(ctx, userID, "", "")
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	old, err := store.Validate(ctx, first.Token)
	require.NoError(t, err)
	assert.Nil(t, old)

	current, err := store.Validate(ctx, second.Token)
	require.NoError(t, err)
	assert.NotNil(t, current)
}

func TestTokenStoreExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	store := newTokenStore(f)

	token, err := store.Issue(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)

	validated, err := store.Validate(ctx, token.Token)
	require.NoError(t, err)
	assert.Nil(t, validated, "a token is dead at its expiry instant")

	consumed, err := store.Consume(ctx, token.Token)
	require.NoError(t, err)
	assert.Nil(t, consumed)
}

func TestTokenStoreUnknownToken(t *testing.T) {
	store := newTokenStore(newFixture())

	got, err := store.Validate(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenStoreCheckFrequency(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	store := newTokenStore(f)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		allowed, err := store.CheckFrequency(ctx, userID)
		require.NoError(t, err)
		require.True(t, allowed)

		_, err = store.Issue(ctx, userID, "", "")
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	// Superseded tokens still count toward the limit.
	allowed, err := store.CheckFrequency(ctx, userID)
	require.NoError(t, err)
	assert.False(t, allowed)

	f.clock.Advance(time.Hour)

	allowed, err = store.CheckFrequency(ctx, userID)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTokenStorePurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	store := newTokenStore(f)

	used, err := store.Issue(ctx, uuid.New(), "", "")
	require.NoError(t, err)
	_, err = store.Consume(ctx, used.Token)
	require.NoError(t, err)

	live, err := store.Issue(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := store.Validate(ctx, live.Token)
	require.NoError(t, err)
	assert.NotNil(t, got)

	f.clock.Advance(21 * time.Minute)

	n, err = store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
