package doctors

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for doctor storage
type Repository interface {
	Create(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error)
	GetByID(ctx context.Context, id string) (*Doctor, error)
	List(ctx context.Context) ([]*Doctor, error)
	UpdateFee(ctx context.Context, id string, fee int64) (*Doctor, error)
}

// InMemoryRepository keeps doctors in process memory (local dev and tests)
type InMemoryRepository struct {
	mu      sync.RWMutex
	doctors map[string]*Doctor
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		doctors: make(map[string]*Doctor),
	}
}

// Create validates and stores a doctor
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doc := &Doctor{
		ID:              uuid.New().String(),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Specialty:       req.Specialty,
		Hospital:        req.Hospital,
		ConsultationFee: req.ConsultationFee,
		CreatedAt:       time.Now().UTC(),
	}

	r.mu.Lock()
	r.doctors[doc.ID] = doc
	r.mu.Unlock()

	copied := *doc
	return &copied, nil
}

// GetByID retrieves a doctor by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *doc
	return &copied, nil
}

// List returns doctors ordered by last name, first name
func (r *InMemoryRepository) List(ctx context.Context) ([]*Doctor, error) {
	r.mu.RLock()
	out := make([]*Doctor, 0, len(r.doctors))
	for _, doc := range r.doctors {
		copied := *doc
		out = append(out, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

// UpdateFee changes the live fee. Existing appointments keep their snapshot.
func (r *InMemoryRepository) UpdateFee(ctx context.Context, id string, fee int64) (*Doctor, error) {
	if fee < 0 {
		return nil, ErrInvalidFee
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	doc.ConsultationFee = fee
	copied := *doc
	return &copied, nil
}
