package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowsBurstThenRejects(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Hour,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		if !limiter.Allow("ip:10.0.0.1") {
			t.Fatalf("request %d within burst rejected", i+1)
		}
	}
	if limiter.Allow("ip:10.0.0.1") {
		t.Error("request over burst allowed")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Hour,
	})
	defer limiter.Stop()

	if !limiter.Allow("ip:10.0.0.1") {
		t.Fatal("first client rejected")
	}
	if !limiter.Allow("ip:10.0.0.2") {
		t.Error("second client rejected after first exhausted its bucket")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 6000, // 100/s, so a short sleep refills a token
		BurstSize:         1,
		CleanupInterval:   time.Hour,
	})
	defer limiter.Stop()

	if !limiter.Allow("ip:10.0.0.1") {
		t.Fatal("first request rejected")
	}
	if limiter.Allow("ip:10.0.0.1") {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if !limiter.Allow("ip:10.0.0.1") {
		t.Error("bucket did not refill")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         2,
		CleanupInterval:   time.Hour,
	})
	defer limiter.Stop()

	router := gin.New()
	router.GET("/", RateLimitMiddleware(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := do(); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
}
