package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/docfinder/appointments-api/internal/appointments"
	appconfig "github.com/docfinder/appointments-api/internal/config"
	"github.com/docfinder/appointments-api/internal/doctors"
	"github.com/docfinder/appointments-api/internal/payments"
	"github.com/docfinder/appointments-api/pkg/logging"
)

func TestBuildRedisClientDisabledReturnsNil(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
}

func TestBuildRedisClientVerifiesPing(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	defer client.Close()

	mr.Close()
	if dead := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); dead != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	pool, err := ConnectPostgresPool(context.Background(), "", logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestBuildMetricsExposesBookingCollectors(t *testing.T) {
	handler, bookingMetrics := BuildMetrics()
	if handler == nil || bookingMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	bookingMetrics.ObserveAppointmentCreated("direct")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "docfinder_appointments_created_total") {
		t.Fatalf("expected appointments counter to be exported")
	}
}

func TestBuildStoresWithoutPoolUsesMemory(t *testing.T) {
	repo, store := BuildStores(nil, &appconfig.Config{}, nil, logging.New("error"))
	if _, ok := repo.(*doctors.InMemoryRepository); !ok {
		t.Fatalf("expected in-memory doctor repository, got %T", repo)
	}
	if _, ok := store.(*appointments.MemoryStore); !ok {
		t.Fatalf("expected in-memory appointment store, got %T", store)
	}
}

func TestBuildCheckout(t *testing.T) {
	logger := logging.New("error")

	t.Run("stripe", func(t *testing.T) {
		provider, fake, err := BuildCheckout(&appconfig.Config{StripeSecretKey: "sk_test_123"}, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := provider.(*payments.StripeCheckoutService); !ok {
			t.Fatalf("expected stripe provider, got %T", provider)
		}
		if fake != nil {
			t.Fatalf("expected no fake routes with stripe")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		provider, fake, err := BuildCheckout(&appconfig.Config{}, logger)
		if err != nil || provider != nil || fake != nil {
			t.Fatalf("expected payments disabled, got %v %v %v", provider, fake, err)
		}
	})

	t.Run("fake", func(t *testing.T) {
		cfg := &appconfig.Config{Env: "development", AllowFakePayments: true, PublicBaseURL: "http://localhost:8080"}
		provider, fake, err := BuildCheckout(cfg, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := provider.(*payments.FakeCheckoutService); !ok {
			t.Fatalf("expected fake provider, got %T", provider)
		}
		if fake == nil {
			t.Fatalf("expected fake payment routes")
		}
	})

	t.Run("fake requires base url", func(t *testing.T) {
		cfg := &appconfig.Config{Env: "development", AllowFakePayments: true}
		if _, _, err := BuildCheckout(cfg, logger); err == nil {
			t.Fatalf("expected error without PUBLIC_BASE_URL")
		}
	})

	t.Run("fake refused in production", func(t *testing.T) {
		cfg := &appconfig.Config{Env: "production", AllowFakePayments: true, PublicBaseURL: "https://api.example.com"}
		if _, _, err := BuildCheckout(cfg, logger); !errors.Is(err, ErrFakePaymentsInProduction) {
			t.Fatalf("expected ErrFakePaymentsInProduction, got %v", err)
		}
	})

	t.Run("nil config", func(t *testing.T) {
		if _, _, err := BuildCheckout(nil, logger); err == nil {
			t.Fatalf("expected error for nil config")
		}
	})
}

func TestBuildVelocityGuardNilWithoutRedis(t *testing.T) {
	if guard := BuildVelocityGuard(nil, &appconfig.Config{}, logging.New("error")); guard != nil {
		t.Fatalf("expected nil guard without redis")
	}
}

func TestBuildEventPublisherNilWithoutQueue(t *testing.T) {
	if pub := BuildEventPublisher(aws.Config{}, "", logging.New("error")); pub != nil {
		t.Fatalf("expected nil publisher without queue url")
	}
}
