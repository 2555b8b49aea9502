package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func doRequest(router *gin.Engine, mutate func(*http.Request)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeadersMiddleware(APISecurityHeadersConfig()))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(router, nil)

	expected := map[string]string{
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
		"X-Frame-Options":              "DENY",
		"X-Content-Type-Options":       "nosniff",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":              "no-referrer",
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Resource-Policy": "same-origin",
	}
	for header, want := range expected {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeadersMiddleware_HSTSDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := APISecurityHeadersConfig()
	config.EnableHSTS = false

	router := gin.New()
	router.Use(SecurityHeadersMiddleware(config))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(router, nil)
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security = %q, want unset", got)
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(router, nil)

	id := w.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("no request ID in response")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", id, err)
	}
}

func TestRequestIDMiddleware_PreservesInboundID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(router, func(req *http.Request) {
		req.Header.Set(RequestIDHeader, "gateway-assigned-id")
	})

	if got := w.Header().Get(RequestIDHeader); got != "gateway-assigned-id" {
		t.Errorf("request ID = %q, want the inbound one", got)
	}
}
