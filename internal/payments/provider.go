package payments

import (
	"errors"
	"strings"
)

// ErrSessionNotFound is returned when the provider has no record of a checkout session.
var ErrSessionNotFound = errors.New("payments: checkout session not found")

// SessionIDPlaceholder is the literal Stripe substitutes into success URLs.
// A request still carrying it means the redirect was never expanded.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// CheckoutParams describes a one-line-item hosted checkout.
type CheckoutParams struct {
	AmountMinor int64
	Currency    string
	ProductName string
	Description string
	SuccessURL  string
	CancelURL   string
	// ClientReference is echoed back by the provider (the booking user id).
	ClientReference string
	Metadata        map[string]string
}

// CheckoutSession is the provider-owned view of a checkout.
type CheckoutSession struct {
	ID               string
	URL              string
	Paid             bool
	PaymentStatus    string
	AmountTotal      int64
	Currency         string
	PaymentReference string
	Metadata         map[string]string
}

// ValidSessionID reports whether id looks like a provider checkout session id.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > 255 || strings.Contains(id, SessionIDPlaceholder) {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
