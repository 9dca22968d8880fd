package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docfinder/appointments-api/cmd/mainconfig"
	"github.com/docfinder/appointments-api/internal/api/router"
	"github.com/docfinder/appointments-api/internal/app/bootstrap"
	"github.com/docfinder/appointments-api/internal/appointments"
	appconfig "github.com/docfinder/appointments-api/internal/config"
	"github.com/docfinder/appointments-api/internal/doctors"
	"github.com/docfinder/appointments-api/pkg/logging"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting docfinder appointments API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	routerCfg, cleanup, err := buildRouterConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildRouterConfig wires storage, payments, velocity limiting, and event
// publishing from config. The returned cleanup releases pooled connections.
func buildRouterConfig(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*router.Config, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	metricsHandler, bookingMetrics := bootstrap.BuildMetrics()

	pool, err := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, cleanup, err
	}
	if pool != nil {
		closers = append(closers, pool.Close)
	}
	doctorRepo, store := bootstrap.BuildStores(pool, cfg, bookingMetrics, logger)

	checkout, fakePayments, err := bootstrap.BuildCheckout(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	velocity := bootstrap.BuildVelocityGuard(redisClient, cfg, logger)

	var publisher appointments.EventPublisher
	if cfg.AppointmentEventsQueueURL != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, cleanup, fmt.Errorf("load aws config: %w", err)
		}
		publisher = bootstrap.BuildEventPublisher(awsCfg, cfg.AppointmentEventsQueueURL, logger)
	}

	service := bootstrap.BuildAppointmentService(cfg, store, doctorRepo, checkout, velocity, publisher, bookingMetrics, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		DoctorsHandler:      doctors.NewHandler(doctorRepo, logger),
		AppointmentsHandler: appointments.NewHandler(service, logger),
		FakePayments:        fakePayments,
		MetricsHandler:      metricsHandler,
		JWTSecret:           cfg.JWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	}
	if cfg.StripeWebhookSecret != "" {
		routerCfg.StripeWebhook = appointments.NewStripeWebhookHandler(service, cfg.StripeWebhookSecret, logger)
	} else {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set; webhook confirmation disabled")
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; authenticated routes will reject every request")
	}
	return routerCfg, cleanup, nil
}
