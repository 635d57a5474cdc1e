// Package bootstrap builds the stores and services shared by the api server,
// the worker and the admin CLI from one configuration.
package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/email"
	"github.com/yupeng0512/user-management/internal/repository"
	"github.com/yupeng0512/user-management/internal/repository/memory"
	"github.com/yupeng0512/user-management/internal/repository/postgres"
	redisrepo "github.com/yupeng0512/user-management/internal/repository/redis"
	"github.com/yupeng0512/user-management/internal/service/notification"
	"github.com/yupeng0512/user-management/internal/service/password"
	"github.com/yupeng0512/user-management/pkg/messaging"
	redisbroker "github.com/yupeng0512/user-management/pkg/messaging/redis"
	"github.com/yupeng0512/user-management/pkg/metrics"
	"github.com/yupeng0512/user-management/pkg/security"
)

type Repositories struct {
	Users    repository.UserRepository
	History  repository.PasswordHistoryRepository
	Tokens   repository.ResetTokenRepository
	Attempts repository.ResetAttemptRepository
	Health   repository.HealthChecker

	// Redis is nil unless redis.enabled is set
	Redis *goredis.Client

	closers []func() error
}

// OpenRepositories connects the configured stores. The reset attempt ledger
// lives in redis when it is enabled so every api replica sees the same count.
func OpenRepositories(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	repos := &Repositories{}

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		repos.closers = append(repos.closers, db.Close)

		if cfg.Database.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				repos.Close()
				return nil, fmt.Errorf("failed to apply schema: %w", err)
			}
		}

		base := postgres.NewBaseRepository(db)
		repos.Users = postgres.NewUserRepository(base)
		repos.History = postgres.NewPasswordHistoryRepository(base)
		repos.Tokens = postgres.NewResetTokenRepository(base)
		repos.Health = &base
	case "memory":
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		store := memory.NewStore()
		repos.Users = memory.NewUserRepository(store)
		repos.History = memory.NewPasswordHistoryRepository(store)
		repos.Tokens = memory.NewResetTokenRepository(store)
		repos.Health = store
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	window := password.PolicyFromConfig(cfg.Password).ResetWindow
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(ctx, redisrepo.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			repos.Close()
			return nil, err
		}
		repos.Redis = client
		repos.closers = append(repos.closers, client.Close)
		repos.Attempts = redisrepo.NewResetAttemptRepository(client, cfg.Redis.AttemptKeyPrefix, window)
	} else {
		repos.Attempts = memory.NewResetAttemptRepository(window)
	}

	return repos, nil
}

// Close releases connections in reverse order of opening
func (r *Repositories) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Error().Err(err).Msg("Failed to close connection")
		}
	}
	r.closers = nil
}

func NewHasher(cfg *config.Config) security.PasswordHasher {
	return security.NewBcryptHasher(cfg.Password.BcryptCost)
}

// NewMailer returns the SMTP sender, or a logging stand-in when SMTP is off
func NewMailer(cfg *config.Config) email.Service {
	if !cfg.SMTP.Enabled {
		log.Warn().Msg("SMTP disabled; emails are written to the log")
		return email.NewLogService()
	}
	return email.NewSMTPService(cfg.SMTP, cfg.App.Name)
}

// NewBroker returns nil when redis is disabled
func (r *Repositories) NewBroker() messaging.Broker {
	if r.Redis == nil {
		return nil
	}
	return redisbroker.NewRedisBroker(r.Redis, log.With().Str("component", "broker").Logger())
}

// NewMailDeliverer sends password mail directly through the configured mailer
func NewMailDeliverer(cfg *config.Config) *notification.MailDeliverer {
	return notification.NewMailDeliverer(NewMailer(cfg), cfg.App.FrontendURL, cfg.Password.ResetTokenTTL)
}

// NewDispatcher queues notifications on the broker when there is one and
// otherwise mails them from the api process.
func NewDispatcher(cfg *config.Config, broker messaging.Broker, m *metrics.Metrics) *notification.Dispatcher {
	var deliverer notification.Deliverer
	if broker != nil {
		deliverer = notification.NewQueueDeliverer(broker, cfg.Redis.EventChannel)
	} else {
		deliverer = NewMailDeliverer(cfg)
	}
	return notification.NewDispatcher(deliverer, notification.WithMetrics(m))
}

// NewPasswordService wires the password lifecycle service
func NewPasswordService(cfg *config.Config, repos *Repositories, notifier password.Notifier, m *metrics.Metrics) *password.Service {
	opts := []password.Option{
		password.WithPolicy(password.PolicyFromConfig(cfg.Password)),
		password.WithMetrics(m),
	}
	if !cfg.App.IsProduction() {
		opts = append(opts, password.WithResetPreview(cfg.App.FrontendURL))
	}

	return password.NewService(
		repos.Users,
		repos.History,
		repos.Tokens,
		repos.Attempts,
		NewHasher(cfg),
		notifier,
		opts...,
	)
}
