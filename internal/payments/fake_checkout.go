package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/docfinder/appointments-api/pkg/logging"
)

// FakeCheckoutService is a dev/demo checkout provider that keeps sessions in memory
// and lets the user "complete" a payment without Stripe credentials.
//
// This MUST be gated by configuration (ALLOW_FAKE_PAYMENTS) and should never be
// enabled in production.
type FakeCheckoutService struct {
	publicBaseURL string
	logger        *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*fakeSession
}

type fakeSession struct {
	session    CheckoutSession
	successURL string
	cancelURL  string
}

func NewFakeCheckoutService(publicBaseURL string, logger *logging.Logger) *FakeCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeCheckoutService{
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        logger,
		sessions:      make(map[string]*fakeSession),
	}
}

func (s *FakeCheckoutService) CreateSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	_ = ctx
	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("payments: amount must be positive, got %d", params.AmountMinor)
	}
	if s.publicBaseURL == "" {
		return nil, fmt.Errorf("payments: fake checkout requires PUBLIC_BASE_URL")
	}
	if !isValidBaseURL(s.publicBaseURL) {
		return nil, fmt.Errorf("payments: fake checkout PUBLIC_BASE_URL must be an absolute http(s) URL")
	}

	id := "cs_fake_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	entry := &fakeSession{
		session: CheckoutSession{
			ID:            id,
			URL:           fmt.Sprintf("%s/payments/fake/%s", s.publicBaseURL, id),
			PaymentStatus: "unpaid",
			AmountTotal:   params.AmountMinor,
			Currency:      strings.ToLower(params.Currency),
			Metadata:      metadata,
		},
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
	}

	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()

	s.logger.Info("fake checkout session created", "session_id", id, "amount_minor", params.AmountMinor)
	return copySession(&entry.session), nil
}

func (s *FakeCheckoutService) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(&entry.session), nil
}

// MarkPaid completes a fake session and returns the success redirect with the
// session id substituted.
func (s *FakeCheckoutService) MarkPaid(ctx context.Context, sessionID string) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !entry.session.Paid {
		entry.session.Paid = true
		entry.session.PaymentStatus = "paid"
		entry.session.PaymentReference = "pi_fake_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	return strings.ReplaceAll(entry.successURL, SessionIDPlaceholder, sessionID), nil
}

func (s *FakeCheckoutService) cancelRedirect(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return "", false
	}
	return entry.cancelURL, true
}

func copySession(src *CheckoutSession) *CheckoutSession {
	out := *src
	out.Metadata = make(map[string]string, len(src.Metadata))
	for k, v := range src.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

func isValidBaseURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
