package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/repository/memory"
	redisrepo "github.com/yupeng0512/user-management/internal/repository/redis"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "test", Env: "development", FrontendURL: "http://localhost:3000"},
		Database: config.DatabaseConfig{Driver: "memory"},
		Redis:    config.RedisConfig{EventChannel: "password.events", AttemptKeyPrefix: "attempts"},
		Password: config.PasswordConfig{
			BcryptCost:              4,
			HistoryDepth:            5,
			MaxDailyChanges:         3,
			ResetTokenTTL:           30 * time.Minute,
			MaxResetAttemptsPerHour: 3,
		},
	}
}

func TestOpenRepositoriesMemory(t *testing.T) {
	repos, err := OpenRepositories(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer repos.Close()

	assert.IsType(t, &memory.Store{}, repos.Health)
	assert.Nil(t, repos.Redis)
	assert.Nil(t, repos.NewBroker())
	assert.NoError(t, repos.Health.Ping(context.Background()))
}

func TestOpenRepositoriesWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.URL = "redis://" + mr.Addr()

	repos, err := OpenRepositories(context.Background(), cfg)
	require.NoError(t, err)
	defer repos.Close()

	assert.IsType(t, &redisrepo.ResetAttemptRepository{}, repos.Attempts)
	assert.NotNil(t, repos.NewBroker())

	require.NoError(t, repos.Attempts.RecordAttempt(context.Background(), uuid.New(), time.Now()))
}

func TestOpenRepositoriesRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"

	_, err := OpenRepositories(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPasswordServiceHonoursConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Password.HistoryDepth = 8

	repos, err := OpenRepositories(context.Background(), cfg)
	require.NoError(t, err)
	defer repos.Close()

	dispatcher := NewDispatcher(cfg, repos.NewBroker(), nil)
	svc := NewPasswordService(cfg, repos, dispatcher, nil)
	assert.Equal(t, 8, svc.Policy().MaxHistoryCount)

	ctx := context.Background()
	hash, err := NewHasher(cfg).Hash("Old12345")
	require.NoError(t, err)
	user := &model.User{
		Base:              model.Base{ID: uuid.New()},
		Username:          "jdoe",
		Email:             "jdoe@example.com",
		PasswordHash:      hash,
		Status:            model.UserStatusActive,
		PasswordChangedAt: time.Now(),
	}
	require.NoError(t, repos.Users.Create(ctx, user))

	resp, err := svc.InitiateReset(ctx, "jdoe@example.com", "", "")
	require.NoError(t, err)
	assert.Contains(t, resp.PreviewURL, "http://localhost:3000/reset-password?token=")
	dispatcher.Wait()
}
