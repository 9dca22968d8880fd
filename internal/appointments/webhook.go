package appointments

import (
	"errors"
	"io"
	"net/http"

	"github.com/docfinder/appointments-api/internal/payments"
	"github.com/docfinder/appointments-api/pkg/logging"
)

const maxWebhookBody = 1 << 20

// StripeWebhookHandler confirms deferred bookings from checkout.session.completed
// events, so a booking lands even if the patient never returns to the success page.
type StripeWebhookHandler struct {
	service       *Service
	webhookSecret string
	logger        *logging.Logger
}

// NewStripeWebhookHandler creates a new handler for Stripe webhooks.
func NewStripeWebhookHandler(service *Service, webhookSecret string, logger *logging.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		service:       service,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Handle processes incoming Stripe webhook events.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, err := payments.ParseWebhookEvent(h.webhookSecret, payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if evt.Session == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !evt.Session.Paid {
		h.logger.Info("stripe checkout completed without payment", "event_id", evt.ID, "session_id", evt.Session.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	appt, err := h.service.ConfirmDeferred(r.Context(), evt.Session.ID)
	switch {
	case err == nil:
		h.logger.Info("stripe webhook confirmed appointment",
			"event_id", evt.ID,
			"session_id", evt.Session.ID,
			"appointment_number", appt.AppointmentNumber,
		)
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrPaymentIncomplete):
		// Acknowledge to prevent retries but can't progress workflow
		h.logger.Warn("stripe webhook could not confirm session", "event_id", evt.ID, "session_id", evt.Session.ID, "error", err)
	default:
		h.logger.Error("stripe webhook confirmation failed", "event_id", evt.ID, "session_id", evt.Session.ID, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
