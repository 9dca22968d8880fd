package doctors

import (
	"fmt"
	"strings"
	"time"
)

// DefaultConsultationFee applies when a doctor is created without a fee (minor currency unit).
const DefaultConsultationFee int64 = 4000

// Doctor is a directory entry. Appointments copy ConsultationFee at booking time.
type Doctor struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Specialty       string    `json:"specialty,omitempty"`
	Hospital        string    `json:"hospital,omitempty"`
	ConsultationFee int64     `json:"consultationFee"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DisplayName renders the doctor for checkout line items.
func (d *Doctor) DisplayName() string {
	return strings.TrimSpace(fmt.Sprintf("Dr. %s %s", d.FirstName, d.LastName))
}

// CreateDoctorRequest represents the request body for creating a doctor
type CreateDoctorRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Specialty       string `json:"specialty"`
	Hospital        string `json:"hospital"`
	ConsultationFee int64  `json:"consultationFee"`
}

// Validate checks required fields and applies the default fee.
func (r *CreateDoctorRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(r.LastName) == "" {
		missing = append(missing, "lastName")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(r.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidDoctor, strings.Join(missing, ", "))
	}
	if r.ConsultationFee < 0 {
		return ErrInvalidFee
	}
	if r.ConsultationFee == 0 {
		r.ConsultationFee = DefaultConsultationFee
	}
	return nil
}
