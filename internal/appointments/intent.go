package appointments

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Provider metadata limits: values are capped at 500 characters.
const (
	maxMetadataValue = 500
	intentVersion    = "1"
)

const (
	metaDoctorID        = "doctor_id"
	metaUserID          = "user_id"
	metaDate            = "date"
	metaTime            = "time"
	metaPatientName     = "patient_name"
	metaPhoneNumber     = "phone_number"
	metaEmail           = "email"
	metaNotes           = "notes"
	metaConsultationFee = "consultation_fee"
	metaIntentVersion   = "intent_version"
)

// BookingIntent is a candidate appointment parked in a checkout session until payment.
// The fee is snapshotted when the session is opened.
type BookingIntent struct {
	DoctorID        string
	UserID          string
	Date            string
	Time            string
	PatientName     string
	PhoneNumber     string
	Email           string
	Notes           string
	ConsultationFee int64
}

func newBookingIntent(req BookingRequest, userID string, fee int64) (BookingIntent, error) {
	intent := BookingIntent{
		DoctorID:        req.DoctorID,
		UserID:          userID,
		Date:            req.Date,
		Time:            req.Time,
		PatientName:     req.PatientName,
		PhoneNumber:     req.PhoneNumber,
		Email:           req.Email,
		Notes:           truncateRunes(req.Notes, maxMetadataValue),
		ConsultationFee: fee,
	}
	for name, v := range map[string]string{
		"doctorId":    intent.DoctorID,
		"userId":      intent.UserID,
		"time":        intent.Time,
		"patientName": intent.PatientName,
		"phoneNumber": intent.PhoneNumber,
		"email":       intent.Email,
	} {
		if utf8.RuneCountInString(v) > maxMetadataValue {
			return BookingIntent{}, validationError("%s exceeds %d characters", name, maxMetadataValue)
		}
	}
	return intent, nil
}

// Metadata encodes the intent as flat provider metadata.
func (i BookingIntent) Metadata() map[string]string {
	md := map[string]string{
		metaDoctorID:        i.DoctorID,
		metaUserID:          i.UserID,
		metaDate:            i.Date,
		metaTime:            i.Time,
		metaPatientName:     i.PatientName,
		metaPhoneNumber:     i.PhoneNumber,
		metaEmail:           i.Email,
		metaConsultationFee: strconv.FormatInt(i.ConsultationFee, 10),
		metaIntentVersion:   intentVersion,
	}
	if i.Notes != "" {
		md[metaNotes] = i.Notes
	}
	return md
}

// DecodeIntent rebuilds an intent from provider metadata. Any missing or
// malformed key yields ErrInvalidSession.
func DecodeIntent(md map[string]string) (BookingIntent, error) {
	if md[metaIntentVersion] != intentVersion {
		return BookingIntent{}, fmt.Errorf("%w: unsupported intent version %q", ErrInvalidSession, md[metaIntentVersion])
	}
	fee, err := strconv.ParseInt(md[metaConsultationFee], 10, 64)
	if err != nil || fee < 0 {
		return BookingIntent{}, fmt.Errorf("%w: bad consultation fee %q", ErrInvalidSession, md[metaConsultationFee])
	}
	intent := BookingIntent{
		DoctorID:        md[metaDoctorID],
		UserID:          md[metaUserID],
		Date:            md[metaDate],
		Time:            md[metaTime],
		PatientName:     md[metaPatientName],
		PhoneNumber:     md[metaPhoneNumber],
		Email:           md[metaEmail],
		Notes:           md[metaNotes],
		ConsultationFee: fee,
	}
	req := intent.bookingRequest()
	if err := req.Validate(); err != nil {
		return BookingIntent{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if strings.TrimSpace(intent.UserID) == "" {
		return BookingIntent{}, fmt.Errorf("%w: missing user", ErrInvalidSession)
	}
	return intent, nil
}

func (i BookingIntent) bookingRequest() BookingRequest {
	return BookingRequest{
		DoctorID:      i.DoctorID,
		Date:          i.Date,
		Time:          i.Time,
		PatientName:   i.PatientName,
		PhoneNumber:   i.PhoneNumber,
		Email:         i.Email,
		Notes:         i.Notes,
		PaymentMethod: PaymentOnline,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
