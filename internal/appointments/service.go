package appointments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/docfinder/appointments-api/internal/auth"
	"github.com/docfinder/appointments-api/internal/doctors"
	"github.com/docfinder/appointments-api/internal/events"
	"github.com/docfinder/appointments-api/internal/observability/metrics"
	"github.com/docfinder/appointments-api/internal/payments"
	"github.com/docfinder/appointments-api/pkg/logging"
)

var appointmentsTracer = otel.Tracer("docfinder.internal.appointments")

// DoctorDirectory resolves the doctor being booked.
type DoctorDirectory interface {
	GetByID(ctx context.Context, id string) (*doctors.Doctor, error)
}

// CheckoutProvider opens and inspects hosted payment sessions.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*payments.CheckoutSession, error)
}

// SessionVelocityGuard caps checkout sessions per user.
type SessionVelocityGuard interface {
	CheckSessionVelocity(ctx context.Context, userID string) (*payments.VelocityResult, error)
}

// EventPublisher receives appointment.created.v1 after persistence.
type EventPublisher interface {
	PublishAppointmentCreated(ctx context.Context, evt events.AppointmentCreatedV1) error
}

// Service is the booking intake. Both paths end in a single Store.Insert,
// which assigns the appointment and queue numbers.
type Service struct {
	store       Store
	doctors     DoctorDirectory
	checkout    CheckoutProvider
	velocity    SessionVelocityGuard
	publisher   EventPublisher
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger
	currency    string
	frontendURL string
}

// NewService constructs the booking service. Online payments stay disabled
// until WithCheckout is called.
func NewService(store Store, directory DoctorDirectory, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if directory == nil {
		panic("appointments: doctor directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		doctors:  directory,
		logger:   logger,
		currency: "lkr",
	}
}

// WithCheckout enables the deferred path.
func (s *Service) WithCheckout(provider CheckoutProvider, currency, frontendURL string) *Service {
	s.checkout = provider
	if c := strings.ToLower(strings.TrimSpace(currency)); c != "" {
		s.currency = c
	}
	s.frontendURL = strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	return s
}

func (s *Service) WithVelocityGuard(guard SessionVelocityGuard) *Service {
	s.velocity = guard
	return s
}

func (s *Service) WithPublisher(publisher EventPublisher) *Service {
	s.publisher = publisher
	return s
}

func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service {
	s.metrics = m
	return s
}

// SubmitDirect books a pay-at-clinic appointment immediately with status pending.
func (s *Service) SubmitDirect(ctx context.Context, identity auth.Identity, req BookingRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.submit_direct")
	defer span.End()

	if strings.TrimSpace(identity.SubjectID) == "" {
		return nil, ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	switch req.PaymentMethod {
	case PaymentAtClinic:
	case "":
		return nil, validationError("missing required fields: paymentMethod")
	case PaymentOnline:
		return nil, validationError("online payments must go through checkout")
	default:
		return nil, validationError("unknown paymentMethod %q", req.PaymentMethod)
	}
	span.SetAttributes(
		attribute.String("docfinder.doctor_id", req.DoctorID),
		attribute.String("docfinder.date", req.Date),
	)

	doc, err := s.lookupDoctor(ctx, req.DoctorID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	appt := &Appointment{
		DoctorID:        req.DoctorID,
		UserID:          identity.SubjectID,
		Date:            req.Date,
		Time:            req.Time,
		PatientName:     req.PatientName,
		PhoneNumber:     req.PhoneNumber,
		Email:           req.Email,
		Notes:           req.Notes,
		PaymentMethod:   PaymentAtClinic,
		Status:          StatusPending,
		ConsultationFee: doc.ConsultationFee,
	}
	stored, err := s.persist(ctx, appt, "direct")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("docfinder.appointment_number", stored.AppointmentNumber))
	return stored, nil
}

// SubmitDeferred opens a checkout session carrying the booking intent. No
// appointment exists until ConfirmDeferred sees the session paid.
func (s *Service) SubmitDeferred(ctx context.Context, identity auth.Identity, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.submit_deferred")
	defer span.End()

	if s.checkout == nil {
		return nil, ErrPaymentsDisabled
	}
	if strings.TrimSpace(identity.SubjectID) == "" {
		return nil, ErrUnauthorized
	}
	if req.Amount <= 0 {
		return nil, validationError("amount must be a positive integer")
	}

	data := req.AppointmentData
	topLevel := strings.TrimSpace(req.DoctorID)
	switch {
	case data.DoctorID == "":
		data.DoctorID = topLevel
	case topLevel != "" && topLevel != strings.TrimSpace(data.DoctorID):
		return nil, validationError("doctorId does not match appointmentData.doctorId")
	}
	data.PaymentMethod = PaymentOnline
	if err := data.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("docfinder.doctor_id", data.DoctorID),
		attribute.Int64("docfinder.amount_minor", req.Amount),
	)

	doc, err := s.lookupDoctor(ctx, data.DoctorID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrNotFound) {
			// An unknown doctor is bad checkout input here, not a missing resource.
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}

	intent, err := newBookingIntent(data, identity.SubjectID, doc.ConsultationFee)
	if err != nil {
		return nil, err
	}

	// Only requests that would open a session count against the quota.
	if s.velocity != nil {
		result, err := s.velocity.CheckSessionVelocity(ctx, identity.SubjectID)
		if err == nil && result != nil && !result.Allowed {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, result.Message)
		}
	}

	session, err := s.checkout.CreateSession(ctx, payments.CheckoutParams{
		AmountMinor:     req.Amount,
		Currency:        s.currency,
		ProductName:     "Consultation with " + doc.DisplayName(),
		Description:     fmt.Sprintf("Appointment on %s at %s", data.Date, data.Time),
		SuccessURL:      s.successURL(),
		CancelURL:       s.cancelURL(data.DoctorID),
		ClientReference: identity.SubjectID,
		Metadata:        intent.Metadata(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session failed")
		return nil, fmt.Errorf("appointments: create checkout session: %w", err)
	}

	s.metrics.ObserveSessionCreated()
	s.logger.Info("checkout session created",
		"session_id", session.ID,
		"doctor_id", data.DoctorID,
		"user_id", identity.SubjectID,
		"amount_minor", req.Amount,
	)
	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// ConfirmDeferred materializes the appointment for a paid session. Repeated or
// concurrent confirmations of the same session return the one stored record.
func (s *Service) ConfirmDeferred(ctx context.Context, sessionID string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.confirm_deferred")
	defer span.End()

	sessionID = strings.TrimSpace(sessionID)
	span.SetAttributes(attribute.String("docfinder.session_id", sessionID))
	if !payments.ValidSessionID(sessionID) {
		s.metrics.ObservePaymentConfirmation("invalid_session")
		return nil, ErrInvalidSession
	}

	existing, err := s.store.GetByPaymentSession(ctx, sessionID)
	if err == nil {
		s.metrics.ObservePaymentConfirmation("replayed")
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if s.checkout == nil {
		return nil, ErrPaymentsDisabled
	}
	session, err := s.checkout.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			s.metrics.ObservePaymentConfirmation("invalid_session")
			return nil, ErrInvalidSession
		}
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: retrieve checkout session: %w", err)
	}
	if !session.Paid {
		s.metrics.ObservePaymentConfirmation("unpaid")
		s.logger.Info("checkout session not paid", "session_id", sessionID, "payment_status", session.PaymentStatus)
		return nil, ErrPaymentIncomplete
	}

	intent, err := DecodeIntent(session.Metadata)
	if err != nil {
		s.metrics.ObservePaymentConfirmation("invalid_session")
		s.logger.Warn("checkout session metadata undecodable", "session_id", sessionID, "error", err)
		return nil, err
	}

	appt := &Appointment{
		DoctorID:         intent.DoctorID,
		UserID:           intent.UserID,
		Date:             intent.Date,
		Time:             intent.Time,
		PatientName:      intent.PatientName,
		PhoneNumber:      intent.PhoneNumber,
		Email:            intent.Email,
		Notes:            intent.Notes,
		PaymentMethod:    PaymentOnline,
		Status:           StatusConfirmed,
		ConsultationFee:  intent.ConsultationFee,
		PaymentSessionID: sessionID,
		PaymentReference: session.PaymentReference,
	}
	stored, err := s.persist(ctx, appt, "deferred")
	if errors.Is(err, ErrAlreadyProcessed) {
		winner, getErr := s.store.GetByPaymentSession(ctx, sessionID)
		if getErr != nil {
			return nil, getErr
		}
		s.metrics.ObservePaymentConfirmation("replayed")
		return winner, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.metrics.ObservePaymentConfirmation("failed")
		return nil, err
	}
	s.metrics.ObservePaymentConfirmation("confirmed")
	return stored, nil
}

// Get returns an appointment to its owner or an admin.
func (s *Service) Get(ctx context.Context, identity auth.Identity, id string) (*Appointment, error) {
	if strings.TrimSpace(identity.SubjectID) == "" {
		return nil, ErrUnauthorized
	}
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.UserID != identity.SubjectID && !identity.IsAdmin() {
		return nil, ErrForbidden
	}
	return appt, nil
}

// ListAll lists every appointment (admin only), newest date first.
func (s *Service) ListAll(ctx context.Context, identity auth.Identity, filter ListFilter) ([]*Appointment, error) {
	if strings.TrimSpace(identity.SubjectID) == "" {
		return nil, ErrUnauthorized
	}
	if !identity.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.store.List(ctx, filter)
}

// ListForUser lists the caller's own appointments.
func (s *Service) ListForUser(ctx context.Context, identity auth.Identity) ([]*Appointment, error) {
	if strings.TrimSpace(identity.SubjectID) == "" {
		return nil, ErrUnauthorized
	}
	return s.store.List(ctx, ListFilter{UserID: identity.SubjectID})
}

// UpdateStatus moves an appointment along its lifecycle (admin only).
func (s *Service) UpdateStatus(ctx context.Context, identity auth.Identity, id, rawStatus string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("docfinder.appointment_id", id))

	if strings.TrimSpace(identity.SubjectID) == "" {
		return nil, ErrUnauthorized
	}
	if !identity.IsAdmin() {
		return nil, ErrForbidden
	}
	to, ok := ParseStatus(rawStatus)
	if !ok {
		return nil, validationError("invalid status %q", rawStatus)
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}
	updated, err := s.store.UpdateStatus(ctx, id, current.Status, to)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment status updated",
		"appointment_id", id,
		"from", current.Status,
		"to", to,
		"admin_id", identity.SubjectID,
	)
	return updated, nil
}

func (s *Service) lookupDoctor(ctx context.Context, id string) (*doctors.Doctor, error) {
	doc, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, doctors.ErrDoctorNotFound) {
			return nil, fmt.Errorf("%w: doctor %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("appointments: doctor lookup: %w", err)
	}
	return doc, nil
}

// persist is the one place appointments are written.
func (s *Service) persist(ctx context.Context, appt *Appointment, path string) (*Appointment, error) {
	start := time.Now()
	stored, err := s.store.Insert(ctx, appt)
	s.metrics.ObservePersistLatency(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrSequenceExhausted) {
			s.metrics.ObserveSequenceExhausted()
			s.logger.Error("appointment numbering exhausted", "doctor_id", appt.DoctorID, "date", appt.Date, "error", err)
		}
		return nil, err
	}

	s.metrics.ObserveAppointmentCreated(path)
	s.logger.Info("appointment created",
		"appointment_id", stored.ID,
		"appointment_number", stored.AppointmentNumber,
		"queue_number", stored.PatientQueueNumber,
		"doctor_id", stored.DoctorID,
		"path", path,
	)
	s.publishCreated(ctx, stored)
	return stored, nil
}

func (s *Service) publishCreated(ctx context.Context, appt *Appointment) {
	if s.publisher == nil {
		return
	}
	evt := events.AppointmentCreatedV1{
		AppointmentID:      appt.ID,
		AppointmentNumber:  appt.AppointmentNumber,
		PatientQueueNumber: appt.PatientQueueNumber,
		DoctorID:           appt.DoctorID,
		UserID:             appt.UserID,
		Date:               appt.Date,
		Time:               appt.Time,
		PaymentMethod:      string(appt.PaymentMethod),
		Status:             string(appt.Status),
		ConsultationFee:    appt.ConsultationFee,
		PatientEmail:       appt.Email,
		CreatedAt:          appt.CreatedAt,
	}
	if err := s.publisher.PublishAppointmentCreated(ctx, evt); err != nil {
		s.logger.Warn("failed to publish appointment event", "appointment_id", appt.ID, "error", err)
	}
}

func (s *Service) successURL() string {
	return s.frontendURL + "/payment-success?session_id=" + payments.SessionIDPlaceholder
}

func (s *Service) cancelURL(doctorID string) string {
	return s.frontendURL + "/booking/" + url.PathEscape(doctorID) + "?payment_canceled=true"
}
