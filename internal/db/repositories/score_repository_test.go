package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/templates-hub/templates-hub/internal/apperr"
)

const (
	scoreOwner  = "user-123"
	scoreIssuer = "https://issuer.example.com"
)

func newScoreRepo(t *testing.T) (*ScoreRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewScoreRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestUpsert_RejectsOutOfRange(t *testing.T) {
	repo, mock := newScoreRepo(t)
	// No expectations: validation must reject before any statement.

	for _, value := range []float64{-0.1, 5.1, 100} {
		if _, err := repo.Upsert(context.Background(), templateID, scoreOwner, scoreIssuer, value); err == nil {
			t.Errorf("Upsert(%v): expected validation error, got nil", value)
		} else if !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("Upsert(%v): err = %v, want validation kind", value, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("statement issued for invalid value: %v", err)
	}
}

func TestUpsert_BoundaryValuesAccepted(t *testing.T) {
	for _, value := range []float64{0, 5} {
		repo, mock := newScoreRepo(t)
		mock.ExpectQuery(`SELECT id FROM scores`).
			WithArgs(templateID, scoreOwner, scoreIssuer).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO scores`).
			WithArgs(templateID, value, scoreOwner, scoreIssuer).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := repo.Upsert(context.Background(), templateID, scoreOwner, scoreIssuer, value)
		if err != nil {
			t.Fatalf("Upsert(%v): unexpected error: %v", value, err)
		}
		if !created {
			t.Errorf("Upsert(%v): created = false, want true", value)
		}
	}
}

func TestUpsert_UpdatesExistingScore(t *testing.T) {
	repo, mock := newScoreRepo(t)
	mock.ExpectQuery(`SELECT id FROM scores`).
		WithArgs(templateID, scoreOwner, scoreIssuer).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("score-1"))
	mock.ExpectExec(`UPDATE scores SET value = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(3.5, "score-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.Upsert(context.Background(), templateID, scoreOwner, scoreIssuer, 3.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("created = true, want false for existing score")
	}
}

func TestUpsert_RecoversInsertRace(t *testing.T) {
	repo, mock := newScoreRepo(t)
	mock.ExpectQuery(`SELECT id FROM scores`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO scores`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec(`UPDATE scores SET value = \$1`).
		WithArgs(4.0, templateID, scoreOwner, scoreIssuer).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.Upsert(context.Background(), templateID, scoreOwner, scoreIssuer, 4.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("created = true, want false after insert race")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListByTemplate(t *testing.T) {
	repo, mock := newScoreRepo(t)
	mock.ExpectQuery(`SELECT.*FROM scores.*ORDER BY updated_at DESC`).
		WithArgs(templateID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "template_id", "value", "owner_subject", "owner_issuer", "created_at", "updated_at",
		}).AddRow("score-1", templateID, 4.5, scoreOwner, scoreIssuer, time.Now(), time.Now()))

	scores, err := repo.ListByTemplate(context.Background(), templateID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 1 || scores[0].Value != 4.5 {
		t.Errorf("scores = %+v", scores)
	}
}
