package appointments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps appointments in process memory (local dev and tests).
// Counting and inserting happen under one mutex, so numbering is race free
// within the process.
type MemoryStore struct {
	mu        sync.Mutex
	clock     Clock
	byID      map[string]*Appointment
	bySession map[string]string
}

// NewMemoryStore creates an empty store. A nil clock uses time.Now.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		clock:     clock,
		byID:      make(map[string]*Appointment),
		bySession: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt == nil {
		return nil, fmt.Errorf("appointments: nil appointment")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt.PaymentSessionID != "" {
		if _, exists := s.bySession[appt.PaymentSessionID]; exists {
			return nil, ErrAlreadyProcessed
		}
	}

	now := s.clock()
	start, end := dayBounds(now)
	var today, queue int
	for _, existing := range s.byID {
		if !existing.CreatedAt.Before(start) && existing.CreatedAt.Before(end) {
			today++
		}
		if existing.DoctorID == appt.DoctorID && existing.Date == appt.Date {
			queue++
		}
	}

	stored := *appt
	stored.ID = uuid.NewString()
	stored.AppointmentNumber = FormatAppointmentNumber(now, today+1)
	stored.PatientQueueNumber = queue + 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.byID[stored.ID] = &stored
	if stored.PaymentSessionID != "" {
		s.bySession[stored.PaymentSessionID] = stored.ID
	}
	out := stored
	return &out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *appt
	return &out, nil
}

func (s *MemoryStore) GetByPaymentSession(ctx context.Context, sessionID string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySession[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	s.mu.Lock()
	out := make([]*Appointment, 0, len(s.byID))
	for _, appt := range s.byID {
		if filter.UserID != "" && appt.UserID != filter.UserID {
			continue
		}
		if filter.DoctorID != "" && appt.DoctorID != filter.DoctorID {
			continue
		}
		if filter.Date != "" && appt.Date != filter.Date {
			continue
		}
		copied := *appt
		out = append(out, &copied)
	}
	s.mu.Unlock()

	sortAppointments(out)
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to Status) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if appt.Status != from {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidTransition, appt.Status)
	}
	appt.Status = to
	appt.UpdatedAt = s.clock()
	out := *appt
	return &out, nil
}
