package appointments

import (
	"context"
	"sort"
)

// Store persists appointments. Insert is the single persist-and-sequence step:
// it assigns ID, AppointmentNumber, PatientQueueNumber and CreatedAt atomically
// with the write. A duplicate PaymentSessionID yields ErrAlreadyProcessed.
type Store interface {
	Insert(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	// UpdateStatus moves id from -> to only if the row is still in from.
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Appointment, error)
}

// sortAppointments orders newest appointment date first, then newest creation.
func sortAppointments(list []*Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date > list[j].Date
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
