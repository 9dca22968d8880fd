package doctors

import "errors"

var (
	// ErrDoctorNotFound is returned when a doctor id does not resolve
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrInvalidDoctor is returned when a create request is missing required fields
	ErrInvalidDoctor = errors.New("invalid doctor")

	// ErrInvalidFee is returned for negative consultation fees
	ErrInvalidFee = errors.New("consultation fee must not be negative")
)
