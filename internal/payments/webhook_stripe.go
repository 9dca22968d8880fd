package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventCheckoutSessionCompleted is the only Stripe event type acted upon.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// signatureTolerance bounds the age of a signed webhook timestamp.
const signatureTolerance = 300 * time.Second

var (
	// ErrInvalidSignature is returned when the Stripe-Signature header does not verify.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrMalformedEvent is returned when a webhook body cannot be decoded.
	ErrMalformedEvent = errors.New("payments: malformed webhook event")
)

// WebhookEvent is the decoded envelope of a Stripe webhook.
type WebhookEvent struct {
	ID      string
	Type    string
	Created time.Time
	Session *CheckoutSession
}

// stripeWebhookEvent represents a Stripe webhook event envelope.
type stripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeCheckoutSession `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent verifies the signature and decodes a webhook payload.
// Session is populated only for checkout.session.completed events.
func ParseWebhookEvent(secret string, payload []byte, sigHeader string) (*WebhookEvent, error) {
	if !VerifyStripeSignature(secret, payload, sigHeader, time.Now()) {
		return nil, ErrInvalidSignature
	}

	var evt stripeWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}

	out := &WebhookEvent{
		ID:      evt.ID,
		Type:    evt.Type,
		Created: time.Unix(evt.Created, 0).UTC(),
	}
	if evt.Type == EventCheckoutSessionCompleted {
		out.Session = evt.Data.Object.toSession()
	}
	return out, nil
}

// VerifyStripeSignature verifies a Stripe webhook signature.
// Stripe signs with HMAC-SHA256 and sends the signature in the Stripe-Signature header
// as: t=<timestamp>,v1=<signature>[,v0=<test_signature>]
func VerifyStripeSignature(secret string, payload []byte, header string, now time.Time) bool {
	if secret == "" || header == "" {
		return false
	}

	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(now.Unix()-ts) > int64(signatureTolerance/time.Second) {
		return false
	}

	// HMAC-SHA256(secret, "timestamp.payload")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
