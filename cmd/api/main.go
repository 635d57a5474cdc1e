package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/internal/bootstrap"
	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/handler"
	authHandler "github.com/yupeng0512/user-management/internal/handler/auth"
	passwordHandler "github.com/yupeng0512/user-management/internal/handler/password"
	"github.com/yupeng0512/user-management/internal/middleware"
	"github.com/yupeng0512/user-management/internal/router"
	authService "github.com/yupeng0512/user-management/internal/service/auth"
	"github.com/yupeng0512/user-management/pkg/auth"
	"github.com/yupeng0512/user-management/pkg/logger"
	"github.com/yupeng0512/user-management/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if _, err := logger.Setup(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "api",
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logger")
	}

	ctx := context.Background()

	// Initialize stores
	repos, err := bootstrap.OpenRepositories(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open repositories")
	}
	defer repos.Close()

	// Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("user_management", reg)

	// Initialize services
	dispatcher := bootstrap.NewDispatcher(cfg, repos.NewBroker(), m)
	passwordSvc := bootstrap.NewPasswordService(cfg, repos, dispatcher, m)

	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	}, time.Now)
	authSvc := authService.NewService(repos.Users, jwtSvc, bootstrap.NewHasher(cfg), time.Now)

	// Setup router
	r := router.NewRouter(
		router.RouterConfig{
			App:       cfg.App,
			Server:    cfg.Server,
			RateLimit: cfg.RateLimit,
			Metrics:   m,
		},
		middleware.NewAuthMiddleware(authSvc),
		handler.NewHandler(repos.Health, reg),
		authHandler.NewHandler(authSvc),
		passwordHandler.NewHandler(passwordSvc),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("env", cfg.App.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Let in-flight notifications finish before the stores close
	dispatcher.Wait()
	log.Info().Msg("server exited")
}
