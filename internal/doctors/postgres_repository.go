package doctors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores doctors in the relational database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(q rowQuerier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

const doctorColumns = `id, first_name, last_name, email, phone, specialty, hospital, consultation_fee, created_at`

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO doctors (id, first_name, last_name, email, phone, specialty, hospital, consultation_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + doctorColumns
	doc, err := scanDoctor(r.db.QueryRow(ctx, query,
		uuid.New(),
		req.FirstName,
		req.LastName,
		req.Email,
		req.Phone,
		req.Specialty,
		req.Hospital,
		req.ConsultationFee,
	))
	if err != nil {
		return nil, fmt.Errorf("doctors: insert failed: %w", err)
	}
	return doc, nil
}

// GetByID fetches a doctor; malformed ids resolve to ErrDoctorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrDoctorNotFound
	}
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	doc, err := scanDoctor(r.db.QueryRow(ctx, query, docID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	return doc, nil
}

// List returns all doctors ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors ORDER BY last_name, first_name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("doctors: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		doc, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: scan failed: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctors: list failed: %w", err)
	}
	return out, nil
}

// UpdateFee changes the live consultation fee.
func (r *PostgresRepository) UpdateFee(ctx context.Context, id string, fee int64) (*Doctor, error) {
	if fee < 0 {
		return nil, ErrInvalidFee
	}
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrDoctorNotFound
	}
	query := `UPDATE doctors SET consultation_fee = $2 WHERE id = $1 RETURNING ` + doctorColumns
	doc, err := scanDoctor(r.db.QueryRow(ctx, query, docID, fee))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: update fee failed: %w", err)
	}
	return doc, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		doc Doctor
		id  uuid.UUID
	)
	if err := row.Scan(
		&id,
		&doc.FirstName,
		&doc.LastName,
		&doc.Email,
		&doc.Phone,
		&doc.Specialty,
		&doc.Hospital,
		&doc.ConsultationFee,
		&doc.CreatedAt,
	); err != nil {
		return nil, err
	}
	doc.ID = id.String()
	return &doc, nil
}
