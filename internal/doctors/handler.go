package doctors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docfinder/appointments-api/pkg/logging"
)

// Handler handles HTTP requests for the doctor directory
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new doctors handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// CreateDoctor handles POST /api/doctors (admin)
func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		h.respondError(w, err, "failed to create doctor")
		return
	}

	h.logger.Info("doctor created", "doctor_id", doc.ID, "fee", doc.ConsultationFee)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": doc})
}

// GetDoctor handles GET /api/doctors/{id}
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err, "failed to fetch doctor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": doc})
}

// ListDoctors handles GET /api/doctors
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	docs, err := h.repo.List(r.Context())
	if err != nil {
		h.respondError(w, err, "failed to list doctors")
		return
	}
	if docs == nil {
		docs = []*Doctor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": docs})
}

type updateFeeRequest struct {
	ConsultationFee *int64 `json:"consultationFee"`
}

// UpdateFee handles PATCH /api/doctors/{id}/fee (admin)
func (h *Handler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	var req updateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConsultationFee == nil {
		writeError(w, http.StatusBadRequest, "consultationFee is required")
		return
	}

	doc, err := h.repo.UpdateFee(r.Context(), chi.URLParam(r, "id"), *req.ConsultationFee)
	if err != nil {
		h.respondError(w, err, "failed to update fee")
		return
	}

	h.logger.Info("doctor fee updated", "doctor_id", doc.ID, "fee", doc.ConsultationFee)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": doc})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidDoctor), errors.Is(err, ErrInvalidFee):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
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
