package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docfinder/appointments-api/pkg/logging"
)

var stripeTracer = otel.Tracer("docfinder.internal.payments.stripe")

// StripeCheckoutService creates and retrieves Stripe Checkout Sessions over the REST API.
type StripeCheckoutService struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewStripeCheckoutService creates a new Stripe checkout service.
func NewStripeCheckoutService(secretKey string, logger *logging.Logger) *StripeCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeCheckoutService{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeCheckoutService) WithBaseURL(baseURL string) *StripeCheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithHTTPClient overrides the HTTP client.
func (s *StripeCheckoutService) WithHTTPClient(client *http.Client) *StripeCheckoutService {
	if client != nil {
		s.httpClient = client
	}
	return s
}

// CreateSession opens a hosted checkout for a single line item.
func (s *StripeCheckoutService) CreateSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("docfinder.amount_minor", params.AmountMinor),
		attribute.String("docfinder.currency", params.Currency),
	)

	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("payments: amount must be positive, got %d", params.AmountMinor)
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		return nil, fmt.Errorf("payments: currency required")
	}
	name := strings.TrimSpace(params.ProductName)
	if name == "" {
		name = "Consultation"
	}

	// Build form-encoded body for Stripe API
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", params.AmountMinor))
	form.Set("line_items[0][price_data][product_data][name]", name)
	if desc := strings.TrimSpace(params.Description); desc != "" {
		form.Set("line_items[0][price_data][product_data][description]", desc)
	}
	form.Set("line_items[0][quantity]", "1")

	if params.SuccessURL != "" {
		form.Set("success_url", params.SuccessURL)
	}
	if params.CancelURL != "" {
		form.Set("cancel_url", params.CancelURL)
	}
	if ref := strings.TrimSpace(params.ClientReference); ref != "" {
		form.Set("client_reference_id", ref)
	}

	keys := make([]string, 0, len(params.Metadata))
	for k := range params.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set(fmt.Sprintf("metadata[%s]", k), params.Metadata[k])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, readStripeError(resp.Body))
	}

	var parsed stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("payments: stripe response missing checkout url")
	}
	span.SetAttributes(attribute.String("docfinder.session_id", parsed.ID))
	s.logger.Info("stripe checkout session created", "session_id", parsed.ID, "amount_minor", params.AmountMinor)

	return parsed.toSession(), nil
}

// RetrieveSession fetches the current state of a checkout session.
func (s *StripeCheckoutService) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.retrieve_checkout_session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("docfinder.session_id", sessionID))

	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}

	apiURL := s.baseURL + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSessionNotFound
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, readStripeError(resp.Body))
	}

	var parsed stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	session := parsed.toSession()
	span.SetAttributes(attribute.Bool("docfinder.session_paid", session.Paid))
	return session, nil
}

func (s *StripeCheckoutService) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", s.apiVersion)
}

// stripeCheckoutSession is the subset of Stripe's Checkout Session we need.
type stripeCheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

func (s stripeCheckoutSession) toSession() *CheckoutSession {
	return &CheckoutSession{
		ID:               s.ID,
		URL:              s.URL,
		Paid:             s.PaymentStatus == "paid",
		PaymentStatus:    s.PaymentStatus,
		AmountTotal:      s.AmountTotal,
		Currency:         s.Currency,
		PaymentReference: s.PaymentIntent,
		Metadata:         s.Metadata,
	}
}

// readStripeError reads and parses a Stripe error response body.
func readStripeError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "unknown error"
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(bytes.TrimSpace(data))
}
