package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func buildStripePayload(t *testing.T, eventID, eventType, sessionID, paymentStatus string, metadata map[string]string) []byte {
	t.Helper()
	evt := map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"payment_intent": "pi_123",
				"payment_status": paymentStatus,
				"amount_total":   4000,
				"currency":       "lkr",
				"metadata":       metadata,
				"status":         "complete",
			},
		},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("failed to marshal stripe event: %v", err)
	}
	return data
}

func stripeSignAt(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestParseWebhookEvent_CheckoutCompleted(t *testing.T) {
	body := buildStripePayload(t, "evt_1", EventCheckoutSessionCompleted, "cs_test_1", "paid", map[string]string{"doctor_id": "doc-1"})

	evt, err := ParseWebhookEvent("whsec_test", body, stripeSignAt(body, "whsec_test", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.ID != "evt_1" || evt.Session == nil {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Session.ID != "cs_test_1" || !evt.Session.Paid || evt.Session.PaymentReference != "pi_123" {
		t.Fatalf("unexpected session %+v", evt.Session)
	}
}

func TestParseWebhookEvent_OtherTypesCarryNoSession(t *testing.T) {
	body := buildStripePayload(t, "evt_2", "payment_intent.created", "cs_test_1", "unpaid", nil)

	evt, err := ParseWebhookEvent("whsec_test", body, stripeSignAt(body, "whsec_test", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Session != nil {
		t.Fatalf("expected nil session for %s", evt.Type)
	}
}

func TestParseWebhookEvent_Errors(t *testing.T) {
	body := buildStripePayload(t, "evt_3", EventCheckoutSessionCompleted, "cs_test_1", "paid", nil)

	if _, err := ParseWebhookEvent("whsec_test", body, stripeSignAt(body, "other", time.Now())); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	bad := []byte(`{"type":"checkout.session.completed"}`)
	if _, err := ParseWebhookEvent("whsec_test", bad, stripeSignAt(bad, "whsec_test", time.Now())); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	tests := []struct {
		name   string
		secret string
		header string
		want   bool
	}{
		{"valid", "whsec", stripeSignAt(payload, "whsec", now), true},
		{"wrong secret", "whsec", stripeSignAt(payload, "other", now), false},
		{"stale timestamp", "whsec", stripeSignAt(payload, "whsec", now.Add(-10*time.Minute)), false},
		{"empty secret", "", stripeSignAt(payload, "", now), false},
		{"empty header", "whsec", "", false},
		{"garbage header", "whsec", "nonsense", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyStripeSignature(tt.secret, payload, tt.header, now); got != tt.want {
				t.Fatalf("VerifyStripeSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}
