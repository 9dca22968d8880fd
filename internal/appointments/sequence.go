package appointments

import (
	"fmt"
	"time"
)

// Clock returns the current wall time. Stores take one so the creation day is testable.
type Clock func() time.Time

// DefaultMaxSequenceAttempts bounds retries after a numbering conflict.
const DefaultMaxSequenceAttempts = 5

// FormatAppointmentNumber renders APP-YYYYMMDD-NNNN for the nth appointment of day.
// From the 10,000th appointment of a day the counter widens past four digits
// instead of wrapping, so numbers stay unique.
func FormatAppointmentNumber(day time.Time, n int) string {
	return fmt.Sprintf("APP-%s-%04d", day.Format("20060102"), n)
}

// dayBounds returns [local midnight, next local midnight) containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func dayLockKey(t time.Time) string {
	return "appointments:day:" + t.Format("20060102")
}

func queueLockKey(doctorID, date string) string {
	return "appointments:queue:" + doctorID + ":" + date
}
