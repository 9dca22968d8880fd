package doctors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var doctorRowColumns = []string{"id", "first_name", "last_name", "email", "phone", "specialty", "hospital", "consultation_fee", "created_at"}

func TestPostgresRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	id := uuid.New()
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM doctors WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(doctorRowColumns).
			AddRow(id, "Nimal", "Perera", "nimal@example.com", "+94", "Cardiology", "General", int64(4500), created))

	doc, err := repo.GetByID(context.Background(), id.String())
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if doc.ID != id.String() || doc.ConsultationFee != 4500 {
		t.Fatalf("unexpected doctor %+v", doc)
	}

	missing := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM doctors WHERE id = \\$1").
		WithArgs(missing).
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), missing.String()); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_MalformedIDIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	if _, err := repo.GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected no queries: %v", err)
	}
}

func TestPostgresRepository_UpdateFee(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	id := uuid.New()

	mock.ExpectQuery("UPDATE doctors SET consultation_fee").
		WithArgs(id, int64(6000)).
		WillReturnRows(pgxmock.NewRows(doctorRowColumns).
			AddRow(id, "Nimal", "Perera", "nimal@example.com", "+94", "", "", int64(6000), time.Now()))

	doc, err := repo.UpdateFee(context.Background(), id.String(), 6000)
	if err != nil {
		t.Fatalf("UpdateFee returned error: %v", err)
	}
	if doc.ConsultationFee != 6000 {
		t.Fatalf("expected updated fee, got %d", doc.ConsultationFee)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	mock.ExpectQuery("SELECT (.+) FROM doctors ORDER BY last_name").
		WillReturnRows(pgxmock.NewRows(doctorRowColumns).
			AddRow(uuid.New(), "A", "Fernando", "a@example.com", "1", "", "", int64(4000), time.Now()).
			AddRow(uuid.New(), "B", "Silva", "b@example.com", "2", "", "", int64(4000), time.Now()))

	docs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(docs) != 2 || docs[1].LastName != "Silva" {
		t.Fatalf("unexpected doctors %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
