package appointments

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusPaid, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusPaid:      {StatusCompleted, StatusCancelled},
}

// ParseStatus normalizes a status label; ok is false for unknown values.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusPaid, StatusCompleted, StatusCancelled:
		return s, true
	}
	return "", false
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
// completed and cancelled are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMethod selects the intake path.
type PaymentMethod string

const (
	PaymentAtClinic PaymentMethod = "payAtClinic"
	PaymentOnline   PaymentMethod = "payOnline"
)

// DateLayout is the calendar date format used on the wire and in storage keys.
const DateLayout = "2006-01-02"

// Appointment is a persisted booking. AppointmentNumber and PatientQueueNumber
// are assigned once, at first persistence, and never change.
type Appointment struct {
	ID                 string        `json:"id"`
	AppointmentNumber  string        `json:"appointmentNumber"`
	PatientQueueNumber int           `json:"patientQueueNumber"`
	DoctorID           string        `json:"doctorId"`
	UserID             string        `json:"userId"`
	Date               string        `json:"date"`
	Time               string        `json:"time"`
	PatientName        string        `json:"patientName"`
	PhoneNumber        string        `json:"phoneNumber"`
	Email              string        `json:"email"`
	Notes              string        `json:"notes,omitempty"`
	PaymentMethod      PaymentMethod `json:"paymentMethod"`
	Status             Status        `json:"status"`
	ConsultationFee    int64         `json:"consultationFee"`
	PaymentSessionID   string        `json:"paymentSessionId,omitempty"`
	PaymentReference   string        `json:"paymentReference,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// BookingRequest is the candidate appointment submitted by a patient.
type BookingRequest struct {
	DoctorID      string        `json:"doctorId"`
	Date          string        `json:"date"`
	Time          string        `json:"time"`
	PatientName   string        `json:"patientName"`
	PhoneNumber   string        `json:"phoneNumber"`
	Email         string        `json:"email"`
	Notes         string        `json:"notes"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// Validate trims input and checks the fields both intake paths require.
func (r *BookingRequest) Validate() error {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Email = strings.TrimSpace(r.Email)
	r.Notes = strings.TrimSpace(r.Notes)

	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"doctorId", r.DoctorID},
		{"date", r.Date},
		{"time", r.Time},
		{"patientName", r.PatientName},
		{"phoneNumber", r.PhoneNumber},
		{"email", r.Email},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return validationError("missing required fields: %s", strings.Join(missing, ", "))
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return validationError("date must be YYYY-MM-DD")
	}
	return nil
}

// CheckoutRequest is the body of a deferred (pay online) booking.
type CheckoutRequest struct {
	Amount          int64          `json:"amount"`
	DoctorID        string         `json:"doctorId"`
	AppointmentData BookingRequest `json:"appointmentData"`
}

// CheckoutResult is returned to the client to redirect into the hosted checkout.
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// ListFilter narrows appointment listings. Zero value lists everything.
type ListFilter struct {
	UserID   string
	DoctorID string
	Date     string
}
