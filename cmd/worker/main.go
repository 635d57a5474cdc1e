package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/internal/bootstrap"
	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/repository"
	"github.com/yupeng0512/user-management/internal/service/notification"
	"github.com/yupeng0512/user-management/internal/service/password"
	"github.com/yupeng0512/user-management/internal/worker"
	"github.com/yupeng0512/user-management/pkg/circuitbreaker"
	"github.com/yupeng0512/user-management/pkg/logger"
	"github.com/yupeng0512/user-management/pkg/metrics"
)

func setupHealthCheck(port int, store repository.HealthChecker, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if _, err := logger.Setup(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "worker",
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := bootstrap.OpenRepositories(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repositories")
	}
	defer repos.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("user_management_worker", reg)

	policy := password.PolicyFromConfig(cfg.Password)
	history := password.NewHistoryLedger(repos.History, bootstrap.NewHasher(cfg), policy, time.Now)
	tokens := password.NewTokenStore(repos.Tokens, repos.Attempts, policy, time.Now)

	cleanup := worker.NewCleanupWorker(tokens, history, cfg.Password.HistoryRetentionDays, cfg.Cleanup.Interval, m)

	healthSrv := setupHealthCheck(cfg.Cleanup.HealthPort, repos.Health, reg)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Dur("interval", cfg.Cleanup.Interval).Msg("Cleanup worker started")
		cleanup.Start(ctx)
	}()

	if broker := repos.NewBroker(); broker != nil {
		breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:    "smtp",
			Timeout: 30 * time.Second,
		})
		consumer := notification.NewConsumer(broker, cfg.Redis.EventChannel, bootstrap.NewMailDeliverer(cfg), breaker, m)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Notification consumer stopped")
			}
		}()
	} else {
		log.Info().Msg("Redis disabled; notifications are sent by the api process")
	}

	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Health check server forced to shutdown")
	}
	log.Info().Msg("Worker exited")
}
