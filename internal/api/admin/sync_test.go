package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/templates-hub/templates-hub/internal/catalog"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
	"github.com/templates-hub/templates-hub/internal/descriptors"
)

type emptyProvider struct{}

func (emptyProvider) FetchSnapshot(context.Context) (map[string]descriptors.Descriptor, error) {
	return map[string]descriptors.Descriptor{}, nil
}

type failingProvider struct{}

func (failingProvider) FetchSnapshot(context.Context) (map[string]descriptors.Descriptor, error) {
	return nil, context.DeadlineExceeded
}

func newSyncRouter(t *testing.T, provider descriptors.SnapshotProvider) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	syncer := catalog.NewSyncer(
		db,
		provider,
		repositories.NewTemplateRepository(db),
		repositories.NewTagRepository(db),
		repositories.NewUserRepository(sqlx.NewDb(db, "postgres")),
		nil,
	)

	router := gin.New()
	router.POST("/api/v1/catalog/sync", SyncHandler(syncer))
	return router, mock
}

func TestSyncHandler_Success(t *testing.T) {
	router, mock := newSyncRouter(t, emptyProvider{})

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT source_file, id FROM templates`).
		WillReturnRows(sqlmock.NewRows([]string{"source_file", "id"}))
	mock.ExpectExec(`DELETE FROM tags`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM users`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/sync", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204; body %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncHandler_RepositoryFailureIs502(t *testing.T) {
	router, _ := newSyncRouter(t, failingProvider{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/sync", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}
