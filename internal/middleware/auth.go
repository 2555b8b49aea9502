// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request IDs, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → RequestID → Metrics → Auth → Handler
//
// Security headers run first so they appear on all responses including
// errors. Rate limiting runs before auth to block brute force before any
// token verification or DB work. Auth populates the caller identity; rating
// handlers read it from the context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/templates-hub/templates-hub/internal/auth"
	"github.com/templates-hub/templates-hub/internal/db/repositories"
)

// IdentityKey is the gin.Context key under which the authenticated
// *auth.Identity is stored.
const IdentityKey = "identity"

// AuthMiddleware validates the bearer token and records the caller in the
// users table so scores can reference it. Requests without a valid token are
// rejected with 401.
func AuthMiddleware(verifier auth.TokenVerifier, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		// Upsert so a first-time rater exists before the score insert.
		if err := userRepo.Ensure(c.Request.Context(), identity.Subject, identity.Issuer); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to record user",
			})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// AdminSecretMiddleware guards admin endpoints with the configured shared
// secret, presented as a bearer token. A missing secret yields 401, a wrong
// one 403.
func AdminSecretMiddleware(checker *auth.AdminSecretChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented, _ := bearerToken(c)

		if err := checker.Check(presented); err != nil {
			status := http.StatusForbidden
			if presented == "" {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error": "Invalid admin credentials",
			})
			return
		}

		c.Next()
	}
}

// Identity returns the authenticated caller stored by AuthMiddleware.
func Identity(c *gin.Context) (*auth.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
