package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/auth"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
)

// stubVerifier accepts exactly one token.
type stubVerifier struct {
	token    string
	identity *auth.Identity
}

func (v *stubVerifier) Verify(_ context.Context, rawToken string) (*auth.Identity, error) {
	if rawToken == v.token {
		return v.identity, nil
	}
	return nil, apperr.Unauthenticated("invalid token")
}

func newAuthRouter(t *testing.T, verifier auth.TokenVerifier) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	userRepo := repositories.NewUserRepository(sqlx.NewDb(db, "postgres"))

	router := gin.New()
	router.GET("/protected", AuthMiddleware(verifier, userRepo), func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no identity"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": identity.Subject})
	})

	return router, mock
}

// ---------------------------------------------------------------------------
// AuthMiddleware
// ---------------------------------------------------------------------------

func TestAuthMiddleware_ValidToken(t *testing.T) {
	verifier := &stubVerifier{
		token:    "good-token",
		identity: &auth.Identity{Subject: "user-1", Issuer: "https://issuer.example.com"},
	}
	router, mock := newAuthRouter(t, verifier)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("user-1", "https://issuer.example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	verifier := &stubVerifier{token: "good-token", identity: &auth.Identity{Subject: "user-1"}}
	router, _ := newAuthRouter(t, verifier)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"wrong token", "Bearer bad-token"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, w.Code)
		}
	}
}

func TestAuthMiddleware_UserUpsertFailure(t *testing.T) {
	verifier := &stubVerifier{
		token:    "good-token",
		identity: &auth.Identity{Subject: "user-1", Issuer: "https://issuer.example.com"},
	}
	router, mock := newAuthRouter(t, verifier)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(errors.New("connection reset"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// ---------------------------------------------------------------------------
// AdminSecretMiddleware
// ---------------------------------------------------------------------------

func TestAdminSecretMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	checker := auth.NewAdminSecretChecker("super-secret")

	router := gin.New()
	router.POST("/admin", AdminSecretMiddleware(checker), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"correct secret", "Bearer super-secret", http.StatusNoContent},
		{"missing secret", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer guess", http.StatusForbidden},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		router.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}
