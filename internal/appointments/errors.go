package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers missing or malformed booking input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an appointment or its doctor does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when no caller identity is present.
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden is returned when the caller may not act on the appointment.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidSession is returned for empty, placeholder, malformed or unknown checkout sessions.
	ErrInvalidSession = errors.New("invalid payment session")

	// ErrPaymentIncomplete is returned when the provider does not report the session as paid.
	ErrPaymentIncomplete = errors.New("payment not completed")

	// ErrAlreadyProcessed is returned by stores when a payment session already produced an appointment.
	ErrAlreadyProcessed = errors.New("payment session already processed")

	// ErrSequenceExhausted is returned when numbering conflicts outlast the retry budget.
	ErrSequenceExhausted = errors.New("could not assign appointment number")

	// ErrInvalidTransition is returned for status changes the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRateLimited is returned when a user opens too many checkout sessions.
	ErrRateLimited = errors.New("too many checkout attempts")

	// ErrPaymentsDisabled is returned when no payment provider is configured.
	ErrPaymentsDisabled = errors.New("online payments are not configured")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
