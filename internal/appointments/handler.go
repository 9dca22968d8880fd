package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/docfinder/appointments-api/internal/auth"
	"github.com/docfinder/appointments-api/pkg/logging"
)

// Handler handles HTTP requests for appointments and checkout
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// CreateAppointment handles POST /api/appointments
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	appt, err := h.service.SubmitDirect(r.Context(), identity, req)
	if err != nil {
		h.respondError(w, err, "failed to create appointment")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Appointment created successfully",
		"data":    appt,
	})
}

// GetAppointment handles GET /api/appointments/{id}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	appt, err := h.service.Get(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err, "failed to fetch appointment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": appt})
}

// ListAppointments handles GET /api/appointments (admin)
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	q := r.URL.Query()
	list, err := h.service.ListAll(r.Context(), identity, ListFilter{
		DoctorID: strings.TrimSpace(q.Get("doctorId")),
		Date:     strings.TrimSpace(q.Get("date")),
	})
	if err != nil {
		h.respondError(w, err, "failed to fetch appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
}

// ListMyAppointments handles GET /api/appointments/user/appointments
func (h *Handler) ListMyAppointments(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	list, err := h.service.ListForUser(r.Context(), identity)
	if err != nil {
		h.respondError(w, err, "failed to fetch appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/appointments/{id} (admin)
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	appt, err := h.service.UpdateStatus(r.Context(), identity, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondError(w, err, "failed to update appointment status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": appt})
}

// CreateCheckoutSession handles POST /api/payments/create-payment-intent
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	result, err := h.service.SubmitDeferred(r.Context(), identity, req)
	if err != nil {
		h.respondError(w, err, "failed to create payment session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": result.SessionID,
		"url":       result.URL,
		"data":      result,
	})
}

// ConfirmPayment handles GET /api/payments/success?session_id=
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.ConfirmDeferred(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		h.respondError(w, err, "failed to confirm payment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment successful and appointment created",
		"data":    appt,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(fallback, "error", err)
		if errors.Is(err, ErrPaymentsDisabled) {
			writeError(w, status, ErrPaymentsDisabled.Error())
			return
		}
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPaymentIncomplete):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrPaymentsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
