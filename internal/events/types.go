package events

import "time"

// AppointmentCreatedV1 is emitted once an appointment has been persisted and numbered.
type AppointmentCreatedV1 struct {
	AppointmentID      string    `json:"appointment_id"`
	AppointmentNumber  string    `json:"appointment_number"`
	PatientQueueNumber int       `json:"patient_queue_number"`
	DoctorID           string    `json:"doctor_id"`
	UserID             string    `json:"user_id"`
	Date               string    `json:"date"`
	Time               string    `json:"time"`
	PaymentMethod      string    `json:"payment_method"`
	Status             string    `json:"status"`
	ConsultationFee    int64     `json:"consultation_fee"`
	PatientEmail       string    `json:"patient_email"`
	CreatedAt          time.Time `json:"created_at"`
}

func (AppointmentCreatedV1) EventType() string { return "appointment.created.v1" }
