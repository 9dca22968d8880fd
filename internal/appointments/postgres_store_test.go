package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var appointmentRowColumns = []string{
	"id", "appointment_number", "patient_queue_number", "doctor_id", "user_id",
	"appointment_date", "appointment_time", "patient_name", "phone_number", "email", "notes",
	"payment_method", "status", "consultation_fee", "payment_session_id", "payment_reference",
	"created_at", "updated_at",
}

func appointmentRow(id, doctorID uuid.UUID, number string, queue int, status Status, session string, at time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentRowColumns).AddRow(
		id, number, queue, doctorID, "user-1",
		time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), "10:00 AM", "Jane", "+94", "jane@example.com", "",
		string(PaymentAtClinic), string(status), int64(4000), session, "",
		at, at,
	)
}

func expectSequencedInsert(mock pgxmock.PgxPoolIface, doctorID uuid.UUID, dayCount, queueCount int) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("appointments:day:20250314").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("appointments:queue:" + doctorID.String() + ":2025-03-20").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM appointments WHERE created_at").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(dayCount))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM appointments WHERE doctor_id").
		WithArgs(doctorID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(queueCount))
}

func insertArgs(number string, queue int, doctorID uuid.UUID) []any {
	args := []any{pgxmock.AnyArg(), number, queue, doctorID}
	for i := 0; i < 13; i++ {
		args = append(args, pgxmock.AnyArg())
	}
	return args
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local)
	store := newPostgresStoreWithConn(mock, nil).WithClock(func() time.Time { return now })
	return mock, store, now
}

func TestPostgresStoreInsertAssignsNumbers(t *testing.T) {
	mock, store, now := newMockStore(t)
	doctorID := uuid.New()
	apptID := uuid.New()

	expectSequencedInsert(mock, doctorID, 7, 2)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs("APP-20250314-0008", 3, doctorID)...).
		WillReturnRows(appointmentRow(apptID, doctorID, "APP-20250314-0008", 3, StatusPending, "", now))
	mock.ExpectCommit()

	appt, err := store.Insert(context.Background(), candidate(doctorID.String(), "2025-03-20"))
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if appt.ID != apptID.String() || appt.AppointmentNumber != "APP-20250314-0008" || appt.PatientQueueNumber != 3 {
		t.Fatalf("unexpected appointment %+v", appt)
	}
	if appt.Date != "2025-03-20" || appt.DoctorID != doctorID.String() {
		t.Fatalf("unexpected date/doctor %s %s", appt.Date, appt.DoctorID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreRetriesNumberingConflict(t *testing.T) {
	mock, store, now := newMockStore(t)
	doctorID := uuid.New()

	expectSequencedInsert(mock, doctorID, 7, 2)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs("APP-20250314-0008", 3, doctorID)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_appointment_number_key"})
	mock.ExpectRollback()

	expectSequencedInsert(mock, doctorID, 8, 2)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs("APP-20250314-0009", 3, doctorID)...).
		WillReturnRows(appointmentRow(uuid.New(), doctorID, "APP-20250314-0009", 3, StatusPending, "", now))
	mock.ExpectCommit()

	appt, err := store.Insert(context.Background(), candidate(doctorID.String(), "2025-03-20"))
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if appt.AppointmentNumber != "APP-20250314-0009" {
		t.Fatalf("expected recomputed number, got %s", appt.AppointmentNumber)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreExhaustsAttempts(t *testing.T) {
	mock, store, _ := newMockStore(t)
	store.WithMaxAttempts(2)
	doctorID := uuid.New()

	for i := 0; i < 2; i++ {
		expectSequencedInsert(mock, doctorID, 0, 0)
		mock.ExpectQuery("INSERT INTO appointments").
			WithArgs(insertArgs("APP-20250314-0001", 1, doctorID)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_doctor_date_queue_key"})
		mock.ExpectRollback()
	}

	_, err := store.Insert(context.Background(), candidate(doctorID.String(), "2025-03-20"))
	if !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreSessionConflictIsAlreadyProcessed(t *testing.T) {
	mock, store, _ := newMockStore(t)
	doctorID := uuid.New()

	expectSequencedInsert(mock, doctorID, 0, 0)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs("APP-20250314-0001", 1, doctorID)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_payment_session_id_key"})
	mock.ExpectRollback()

	appt := candidate(doctorID.String(), "2025-03-20")
	appt.PaymentSessionID = "cs_test_1"
	if _, err := store.Insert(context.Background(), appt); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreUpdateStatus(t *testing.T) {
	mock, store, now := newMockStore(t)
	doctorID := uuid.New()
	apptID := uuid.New()

	mock.ExpectQuery("UPDATE appointments SET status").
		WithArgs(apptID, "pending", "confirmed", pgxmock.AnyArg()).
		WillReturnRows(appointmentRow(apptID, doctorID, "APP-20250314-0001", 1, StatusConfirmed, "", now))

	appt, err := store.UpdateStatus(context.Background(), apptID.String(), StatusPending, StatusConfirmed)
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if appt.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", appt.Status)
	}

	mock.ExpectQuery("UPDATE appointments SET status").
		WithArgs(apptID, "pending", "cancelled", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("(?s)SELECT (.+) FROM appointments WHERE id = \\$1").
		WithArgs(apptID).
		WillReturnRows(appointmentRow(apptID, doctorID, "APP-20250314-0001", 1, StatusCompleted, "", now))

	if _, err := store.UpdateStatus(context.Background(), apptID.String(), StatusPending, StatusCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreLookups(t *testing.T) {
	mock, store, now := newMockStore(t)
	doctorID := uuid.New()
	apptID := uuid.New()

	mock.ExpectQuery("(?s)SELECT (.+) FROM appointments WHERE payment_session_id = \\$1").
		WithArgs("cs_test_1").
		WillReturnRows(appointmentRow(apptID, doctorID, "APP-20250314-0001", 1, StatusConfirmed, "cs_test_1", now))
	appt, err := store.GetByPaymentSession(context.Background(), "cs_test_1")
	if err != nil || appt.PaymentSessionID != "cs_test_1" {
		t.Fatalf("GetByPaymentSession: %v %+v", err, appt)
	}

	mock.ExpectQuery("(?s)SELECT (.+) FROM appointments WHERE payment_session_id = \\$1").
		WithArgs("cs_test_2").
		WillReturnError(pgx.ErrNoRows)
	if _, err := store.GetByPaymentSession(context.Background(), "cs_test_2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	mock.ExpectQuery("(?s)SELECT (.+) FROM appointments WHERE user_id = \\$1 ORDER BY appointment_date DESC, created_at DESC").
		WithArgs("user-1").
		WillReturnRows(appointmentRow(apptID, doctorID, "APP-20250314-0001", 1, StatusPending, "", now))
	list, err := store.List(context.Background(), ListFilter{UserID: "user-1"})
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v %d", err, len(list))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
