package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docfinder/appointments-api/internal/appointments"
	"github.com/docfinder/appointments-api/internal/doctors"
	httpmiddleware "github.com/docfinder/appointments-api/internal/http/middleware"
	"github.com/docfinder/appointments-api/internal/payments"
	"github.com/docfinder/appointments-api/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	DoctorsHandler      *doctors.Handler
	AppointmentsHandler *appointments.Handler
	StripeWebhook       *appointments.StripeWebhookHandler
	FakePayments        *payments.FakePaymentsHandler
	MetricsHandler      http.Handler
	JWTSecret           string
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health, metrics, catalogue, payment return, webhooks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.DoctorsHandler != nil {
			public.Get("/api/doctors", cfg.DoctorsHandler.ListDoctors)
			public.Get("/api/doctors/{id}", cfg.DoctorsHandler.GetDoctor)
		}
		if cfg.AppointmentsHandler != nil {
			public.Get("/api/payments/success", cfg.AppointmentsHandler.ConfirmPayment)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
		if cfg.FakePayments != nil {
			public.Mount("/payments/fake", cfg.FakePayments.Routes())
		}
	})

	// Authenticated API routes
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.JWTAuth(cfg.JWTSecret))

		if cfg.AppointmentsHandler != nil {
			authed.Route("/api/appointments", func(r chi.Router) {
				r.Post("/", cfg.AppointmentsHandler.CreateAppointment)
				r.Get("/", cfg.AppointmentsHandler.ListAppointments)
				r.Get("/user/appointments", cfg.AppointmentsHandler.ListMyAppointments)
				r.Get("/{id}", cfg.AppointmentsHandler.GetAppointment)
				r.Patch("/{id}", cfg.AppointmentsHandler.UpdateStatus)
			})
			authed.Post("/api/payments/create-payment-intent", cfg.AppointmentsHandler.CreateCheckoutSession)
		}

		if cfg.DoctorsHandler != nil {
			authed.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireAdmin)
				admin.Post("/api/doctors", cfg.DoctorsHandler.CreateDoctor)
				admin.Patch("/api/doctors/{id}/fee", cfg.DoctorsHandler.UpdateFee)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
