package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docfinder/appointments-api/internal/observability/metrics"
	"github.com/docfinder/appointments-api/pkg/logging"
)

const (
	pgUniqueViolation = "23505"

	constraintSessionUnique = "appointments_payment_session_id_key"
)

type pgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore numbers appointments inside a transaction serialized by
// advisory locks on the creation day and on (doctor, date). Unique
// constraints back the locks; a numbering conflict rolls back and retries.
type PostgresStore struct {
	db          pgxConn
	clock       Clock
	maxAttempts int
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool, logger *logging.Logger) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return newPostgresStoreWithConn(pool, logger)
}

func newPostgresStoreWithConn(db pgxConn, logger *logging.Logger) *PostgresStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{
		db:          db,
		clock:       time.Now,
		maxAttempts: DefaultMaxSequenceAttempts,
		logger:      logger,
	}
}

// WithClock overrides the wall clock used for creation time and the daily counter.
func (s *PostgresStore) WithClock(clock Clock) *PostgresStore {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// WithMaxAttempts sets how many numbering attempts Insert makes.
func (s *PostgresStore) WithMaxAttempts(n int) *PostgresStore {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

// WithMetrics records sequence conflicts.
func (s *PostgresStore) WithMetrics(m *metrics.BookingMetrics) *PostgresStore {
	s.metrics = m
	return s
}

const appointmentColumns = `id, appointment_number, patient_queue_number, doctor_id, user_id,
	appointment_date, appointment_time, patient_name, phone_number, email, notes,
	payment_method, status, consultation_fee,
	COALESCE(payment_session_id, ''), COALESCE(payment_reference, ''),
	created_at, updated_at`

var errSequenceConflict = errors.New("appointments: sequence conflict")

// Insert persists appt and assigns its identifiers, retrying numbering conflicts.
func (s *PostgresStore) Insert(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt == nil {
		return nil, fmt.Errorf("appointments: nil appointment")
	}
	doctorID, err := uuid.Parse(appt.DoctorID)
	if err != nil {
		return nil, validationError("doctorId is not a valid id")
	}
	date, err := time.Parse(DateLayout, appt.Date)
	if err != nil {
		return nil, validationError("date must be YYYY-MM-DD")
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		stored, err := s.insertOnce(ctx, appt, doctorID, date)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, errSequenceConflict) {
			return nil, err
		}
		s.metrics.ObserveSequenceConflict()
		s.logger.Warn("appointment sequence conflict, retrying",
			"doctor_id", appt.DoctorID,
			"date", appt.Date,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrSequenceExhausted, s.maxAttempts)
}

func (s *PostgresStore) insertOnce(ctx context.Context, appt *Appointment, doctorID uuid.UUID, date time.Time) (*Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}

	stored, err := s.sequenceAndInsert(ctx, tx, appt, doctorID, date)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classifyWriteError(fmt.Errorf("appointments: commit: %w", err))
	}
	return stored, nil
}

func (s *PostgresStore) sequenceAndInsert(ctx context.Context, tx pgx.Tx, appt *Appointment, doctorID uuid.UUID, date time.Time) (*Appointment, error) {
	now := s.clock()

	// Day scope first, then (doctor, date); a fixed order cannot deadlock.
	for _, key := range []string{dayLockKey(now), queueLockKey(doctorID.String(), appt.Date)} {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return nil, fmt.Errorf("appointments: advisory lock %s: %w", key, err)
		}
	}

	start, end := dayBounds(now)
	var today int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE created_at >= $1 AND created_at < $2`,
		start, end,
	).Scan(&today); err != nil {
		return nil, fmt.Errorf("appointments: count day: %w", err)
	}

	var queue int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND appointment_date = $2`,
		doctorID, date,
	).Scan(&queue); err != nil {
		return nil, fmt.Errorf("appointments: count queue: %w", err)
	}

	query := `
		INSERT INTO appointments (
			id, appointment_number, patient_queue_number, doctor_id, user_id,
			appointment_date, appointment_time, patient_name, phone_number, email, notes,
			payment_method, status, consultation_fee, payment_session_id, payment_reference,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		RETURNING ` + appointmentColumns
	stored, err := scanAppointment(tx.QueryRow(ctx, query,
		uuid.New(),
		FormatAppointmentNumber(now, today+1),
		queue+1,
		doctorID,
		appt.UserID,
		date,
		appt.Time,
		appt.PatientName,
		appt.PhoneNumber,
		appt.Email,
		appt.Notes,
		string(appt.PaymentMethod),
		string(appt.Status),
		appt.ConsultationFee,
		nullableText(appt.PaymentSessionID),
		nullableText(appt.PaymentReference),
		now,
	))
	if err != nil {
		return nil, classifyWriteError(fmt.Errorf("appointments: insert: %w", err))
	}
	return stored, nil
}

// classifyWriteError maps unique violations: the session constraint means the
// session already produced an appointment, any other is a numbering conflict.
func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	if pgErr.ConstraintName == constraintSessionUnique {
		return ErrAlreadyProcessed
	}
	return fmt.Errorf("%w: %s", errSequenceConflict, pgErr.ConstraintName)
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Appointment, error) {
	apptID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, apptID)
}

func (s *PostgresStore) GetByPaymentSession(ctx context.Context, sessionID string) (*Appointment, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE payment_session_id = $1`, sessionID)
}

func (s *PostgresStore) getOne(ctx context.Context, query string, arg any) (*Appointment, error) {
	appt, err := scanAppointment(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.DoctorID != "" {
		doctorID, err := uuid.Parse(filter.DoctorID)
		if err != nil {
			return []*Appointment{}, nil
		}
		args = append(args, doctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.Date != "" {
		date, err := time.Parse(DateLayout, filter.Date)
		if err != nil {
			return nil, validationError("date must be YYYY-MM-DD")
		}
		args = append(args, date)
		where = append(where, fmt.Sprintf("appointment_date = $%d", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY appointment_date DESC, created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to Status) (*Appointment, error) {
	apptID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	query := `UPDATE appointments SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + appointmentColumns
	appt, err := scanAppointment(s.db.QueryRow(ctx, query, apptID, string(from), string(to), s.clock()))
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: update status: %w", err)
	}
	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: status is %s", ErrInvalidTransition, current.Status)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt          Appointment
		id, doctorID  uuid.UUID
		date          time.Time
		method, state string
	)
	if err := row.Scan(
		&id,
		&appt.AppointmentNumber,
		&appt.PatientQueueNumber,
		&doctorID,
		&appt.UserID,
		&date,
		&appt.Time,
		&appt.PatientName,
		&appt.PhoneNumber,
		&appt.Email,
		&appt.Notes,
		&method,
		&state,
		&appt.ConsultationFee,
		&appt.PaymentSessionID,
		&appt.PaymentReference,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.ID = id.String()
	appt.DoctorID = doctorID.String()
	appt.Date = date.Format(DateLayout)
	appt.PaymentMethod = PaymentMethod(method)
	appt.Status = Status(state)
	return &appt, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
