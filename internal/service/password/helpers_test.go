package password

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository"
	"github.com/yupeng0512/user-management/internal/repository/memory"
	"github.com/yupeng0512/user-management/pkg/security"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentReset struct {
	email    string
	token    string
	username string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []string
	resets  []sentReset
}

func (n *recordingNotifier) SendChangeNotice(ctx context.Context, email, username, ipAddress string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, email)
}

func (n *recordingNotifier) SendResetLink(ctx context.Context, email, token, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, sentReset{email: email, token: token, username: username})
}

func (n *recordingNotifier) lastReset(t *testing.T) sentReset {
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets, "no reset link was sent")
	return n.resets[len(n.resets)-1]
}

type fixture struct {
	clock    *fakeClock
	users    repository.UserRepository
	history  repository.PasswordHistoryRepository
	tokens   repository.ResetTokenRepository
	attempts repository.ResetAttemptRepository
	hasher   security.PasswordHasher
	notifier *recordingNotifier
}

func newFixture() *fixture {
	store := memory.NewStore()
	return &fixture{
		clock:    newFakeClock(),
		users:    memory.NewUserRepository(store),
		history:  memory.NewPasswordHistoryRepository(store),
		tokens:   memory.NewResetTokenRepository(store),
		attempts: memory.NewResetAttemptRepository(time.Hour),
		hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		notifier: &recordingNotifier{},
	}
}

func (f *fixture) service(opts ...Option) *Service {
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	return NewService(f.users, f.history, f.tokens, f.attempts, f.hasher, f.notifier, opts...)
}

// createUser stores an active user with the given password and a standing refresh token
func (f *fixture) createUser(t *testing.T, username, email, password string) *model.User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	refresh := "refresh-" + username
	now := f.clock.Now()
	user := &model.User{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		Role:              model.UserRoleUser,
		Status:            model.UserStatusActive,
		RefreshToken:      &refresh,
		PasswordChangedAt: now,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.User {
	t.Helper()
	user, err := f.users.Get(context.Background(), id)
	require.NoError(t, err)
	return user
}
