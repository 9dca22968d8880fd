package appointments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test123"

func signedWebhookRequest(t *testing.T, secret, eventType, sessionID, paymentStatus string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "evt_" + sessionID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"payment_status": paymentStatus,
				"status":         "complete",
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(body)))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func TestStripeWebhookConfirmsPaidSession(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.paidSession(t)
	handler := NewStripeWebhookHandler(env.svc, testWebhookSecret, nil)

	w := httptest.NewRecorder()
	handler.Handle(w, signedWebhookRequest(t, testWebhookSecret, "checkout.session.completed", sessionID, "paid"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	appt, err := env.store.GetByPaymentSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("expected appointment for session: %v", err)
	}

	// the success redirect afterwards returns the same record
	again, err := env.svc.ConfirmDeferred(context.Background(), sessionID)
	if err != nil || again.ID != appt.ID {
		t.Fatalf("expected replay of %s, got %v %v", appt.ID, again, err)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStripeWebhookHandler(env.svc, testWebhookSecret, nil)

	w := httptest.NewRecorder()
	handler.Handle(w, signedWebhookRequest(t, "wrong", "checkout.session.completed", "cs_fake_x", "paid"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestStripeWebhookAcknowledgesWithoutBooking(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStripeWebhookHandler(env.svc, testWebhookSecret, nil)

	cases := []struct {
		name, eventType, sessionID, status string
	}{
		{"other event", "payment_intent.created", "cs_fake_a", "paid"},
		{"unpaid session", "checkout.session.completed", "cs_fake_b", "unpaid"},
		{"unknown session", "checkout.session.completed", "cs_fake_unknown", "paid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Handle(w, signedWebhookRequest(t, testWebhookSecret, tc.eventType, tc.sessionID, tc.status))
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
		})
	}

	list, _ := env.store.List(context.Background(), ListFilter{})
	if len(list) != 0 {
		t.Fatalf("expected no appointments, got %d", len(list))
	}
}
