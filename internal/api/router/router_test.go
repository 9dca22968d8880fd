package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/docfinder/appointments-api/internal/appointments"
	"github.com/docfinder/appointments-api/internal/doctors"
	httpmiddleware "github.com/docfinder/appointments-api/internal/http/middleware"
	"github.com/docfinder/appointments-api/internal/payments"
	"github.com/docfinder/appointments-api/pkg/logging"
)

const testSecret = "router-test-secret"

type testRouter struct {
	handler http.Handler
	doctor  *doctors.Doctor
}

func newTestRouter(t *testing.T, webhookSecret string) *testRouter {
	t.Helper()

	logger := logging.NewWithWriter(&bytes.Buffer{}, "error")
	doctorRepo := doctors.NewInMemoryRepository()
	doc, err := doctorRepo.Create(context.Background(), &doctors.CreateDoctorRequest{
		FirstName: "Nimal",
		LastName:  "Perera",
		Email:     "nimal@example.com",
		Phone:     "+94770000000",
	})
	if err != nil {
		t.Fatalf("seed doctor: %v", err)
	}

	fake := payments.NewFakeCheckoutService("http://localhost:8080", logger)
	service := appointments.NewService(appointments.NewMemoryStore(nil), doctorRepo, logger).
		WithCheckout(fake, "lkr", "https://frontend.example.com")

	cfg := &Config{
		Logger:              logger,
		DoctorsHandler:      doctors.NewHandler(doctorRepo, logger),
		AppointmentsHandler: appointments.NewHandler(service, logger),
		FakePayments:        payments.NewFakePaymentsHandler(fake, logger),
		JWTSecret:           testSecret,
	}
	if webhookSecret != "" {
		cfg.StripeWebhook = appointments.NewStripeWebhookHandler(service, webhookSecret, logger)
	}
	return &testRouter{handler: New(cfg), doctor: doc}
}

func bearer(t *testing.T, subject, role string) string {
	t.Helper()
	claims := httpmiddleware.Claims{Role: role}
	claims.Subject = subject
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(5 * time.Minute))
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func (tr *testRouter) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	tr := newTestRouter(t, "")

	rr := tr.do(http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterDoctorCatalogueIsPublic(t *testing.T) {
	tr := newTestRouter(t, "")

	rr := tr.do(http.MethodGet, "/api/doctors", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = tr.do(http.MethodGet, "/api/doctors/"+tr.doctor.ID, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for doctor lookup, got %d", rr.Code)
	}
}

func TestRouterAppointmentsRequireToken(t *testing.T) {
	tr := newTestRouter(t, "")

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/appointments"},
		{http.MethodGet, "/api/appointments"},
		{http.MethodGet, "/api/appointments/user/appointments"},
		{http.MethodGet, "/api/appointments/some-id"},
		{http.MethodPatch, "/api/appointments/some-id"},
		{http.MethodPost, "/api/payments/create-payment-intent"},
	} {
		rr := tr.do(route.method, route.path, "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, rr.Code)
		}
	}
}

func TestRouterDirectBookingFlow(t *testing.T) {
	tr := newTestRouter(t, "")
	token := bearer(t, "user-1", "customer")

	rr := tr.do(http.MethodPost, "/api/appointments", token, map[string]any{
		"doctorId":      tr.doctor.ID,
		"date":          "2025-03-14",
		"time":          "10:00",
		"patientName":   "Kamal Silva",
		"phoneNumber":   "+94771111111",
		"email":         "kamal@example.com",
		"paymentMethod": "payAtClinic",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Success bool                     `json:"success"`
		Data    appointments.Appointment `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !created.Success || created.Data.PatientQueueNumber != 1 {
		t.Fatalf("unexpected create response: %+v", created)
	}
	if !strings.HasPrefix(created.Data.AppointmentNumber, "APP-") {
		t.Fatalf("unexpected appointment number %q", created.Data.AppointmentNumber)
	}

	rr = tr.do(http.MethodGet, "/api/appointments/user/appointments", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for own list, got %d", rr.Code)
	}
	rr = tr.do(http.MethodGet, "/api/appointments/"+created.Data.ID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for own appointment, got %d", rr.Code)
	}
}

func TestRouterAdminDoctorRoutes(t *testing.T) {
	tr := newTestRouter(t, "")
	body := map[string]any{"consultationFee": 6000}

	rr := tr.do(http.MethodPatch, "/api/doctors/"+tr.doctor.ID+"/fee", bearer(t, "user-1", "customer"), body)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rr.Code)
	}
	rr = tr.do(http.MethodPatch, "/api/doctors/"+tr.doctor.ID+"/fee", bearer(t, "admin-1", "admin"), body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterFakePaymentsMounted(t *testing.T) {
	tr := newTestRouter(t, "")

	rr := tr.do(http.MethodGet, "/payments/fake/cs_fake_missing", "", nil)
	if rr.Code == http.StatusMethodNotAllowed {
		t.Fatalf("fake payments routes not mounted")
	}
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown fake session, got %d", rr.Code)
	}
}

func TestRouterStripeWebhookOnlyWithSecret(t *testing.T) {
	without := newTestRouter(t, "")
	rr := without.do(http.MethodPost, "/webhooks/stripe", "", map[string]any{})
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected webhook to be unregistered, got %d", rr.Code)
	}

	with := newTestRouter(t, "whsec_test")
	rr = with.do(http.MethodPost, "/webhooks/stripe", "", map[string]any{})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unsigned event, got %d", rr.Code)
	}
}
