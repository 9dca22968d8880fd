package bootstrap

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/docfinder/appointments-api/internal/appointments"
	appconfig "github.com/docfinder/appointments-api/internal/config"
	"github.com/docfinder/appointments-api/internal/doctors"
	"github.com/docfinder/appointments-api/internal/events"
	"github.com/docfinder/appointments-api/internal/observability/metrics"
	"github.com/docfinder/appointments-api/internal/payments"
	"github.com/docfinder/appointments-api/pkg/logging"
)

// ErrFakePaymentsInProduction is returned when the demo checkout is enabled
// in a production environment.
var ErrFakePaymentsInProduction = errors.New("bootstrap: fake payments cannot run in production")

// BuildStores picks Postgres-backed storage when a pool is available and
// in-memory storage otherwise.
func BuildStores(pool *pgxpool.Pool, cfg *appconfig.Config, bookingMetrics *metrics.BookingMetrics, logger *logging.Logger) (doctors.Repository, appointments.Store) {
	if logger == nil {
		logger = logging.Default()
	}
	if pool == nil {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		return doctors.NewInMemoryRepository(), appointments.NewMemoryStore(nil)
	}
	store := appointments.NewPostgresStore(pool, logger).WithMetrics(bookingMetrics)
	if cfg != nil && cfg.MaxSequenceAttempts > 0 {
		store = store.WithMaxAttempts(cfg.MaxSequenceAttempts)
	}
	return doctors.NewPostgresRepository(pool), store
}

// BuildCheckout selects the checkout provider. Stripe wins when a secret key
// is configured; otherwise the fake provider runs when explicitly allowed.
// A nil provider leaves online payments disabled.
func BuildCheckout(cfg *appconfig.Config, logger *logging.Logger) (appointments.CheckoutProvider, *payments.FakePaymentsHandler, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	if cfg.StripeSecretKey != "" {
		logger.Info("stripe checkout enabled", "currency", cfg.StripeCurrency)
		return payments.NewStripeCheckoutService(cfg.StripeSecretKey, logger), nil, nil
	}
	if !cfg.AllowFakePayments {
		logger.Warn("no checkout provider configured; online payments disabled")
		return nil, nil, nil
	}
	if cfg.IsProduction() {
		return nil, nil, ErrFakePaymentsInProduction
	}
	if cfg.PublicBaseURL == "" {
		return nil, nil, fmt.Errorf("bootstrap: PUBLIC_BASE_URL is required for fake payments")
	}
	fake := payments.NewFakeCheckoutService(cfg.PublicBaseURL, logger)
	logger.Warn("fake checkout enabled; no real payments will be processed", "public_base_url", cfg.PublicBaseURL)
	return fake, payments.NewFakePaymentsHandler(fake, logger), nil
}

// BuildVelocityGuard returns the Redis-backed session limiter, or nil when
// Redis is not configured.
func BuildVelocityGuard(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) appointments.SessionVelocityGuard {
	if redisClient == nil || cfg == nil {
		return nil
	}
	return payments.NewVelocityChecker(redisClient, payments.VelocityConfig{
		MaxSessionsPerUser: cfg.SessionVelocityMax,
		Window:             cfg.SessionVelocityWindow,
	}, logger)
}

// BuildEventPublisher wires the SQS appointment event publisher, or returns
// nil when no queue URL is configured.
func BuildEventPublisher(awsCfg aws.Config, queueURL string, logger *logging.Logger) appointments.EventPublisher {
	if queueURL == "" {
		return nil
	}
	queue := events.NewSQSQueue(sqs.NewFromConfig(awsCfg), queueURL)
	return events.NewPublisher(queue, logger)
}

// BuildAppointmentService assembles the booking intake from its optional
// collaborators. Nil collaborators are skipped.
func BuildAppointmentService(
	cfg *appconfig.Config,
	store appointments.Store,
	directory appointments.DoctorDirectory,
	checkout appointments.CheckoutProvider,
	velocity appointments.SessionVelocityGuard,
	publisher appointments.EventPublisher,
	bookingMetrics *metrics.BookingMetrics,
	logger *logging.Logger,
) *appointments.Service {
	service := appointments.NewService(store, directory, logger).WithMetrics(bookingMetrics)
	if checkout != nil {
		service = service.WithCheckout(checkout, cfg.StripeCurrency, cfg.FrontendURL)
	}
	if velocity != nil {
		service = service.WithVelocityGuard(velocity)
	}
	if publisher != nil {
		service = service.WithPublisher(publisher)
	}
	return service
}
