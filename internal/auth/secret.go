package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/templates-hub/templates-hub/internal/apperr"
)

// AdminSecretChecker compares a presented admin secret against the configured
// one. The configured value may be either a plaintext secret or a bcrypt hash
// (detected by the $2 prefix); plaintext comparison is constant-time.
type AdminSecretChecker struct {
	configured string
	hashed     bool
}

// NewAdminSecretChecker creates a checker for the configured secret.
func NewAdminSecretChecker(configured string) *AdminSecretChecker {
	return &AdminSecretChecker{
		configured: configured,
		hashed:     strings.HasPrefix(configured, "$2"),
	}
}

// Check validates the presented secret. A missing secret yields an
// unauthenticated error; a wrong one yields forbidden, so callers can map
// them to 401 and 403 respectively.
func (c *AdminSecretChecker) Check(presented string) error {
	if presented == "" {
		return apperr.Unauthenticated("admin secret required")
	}

	if c.hashed {
		if err := bcrypt.CompareHashAndPassword([]byte(c.configured), []byte(presented)); err != nil {
			return apperr.Forbidden("invalid admin secret")
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(c.configured), []byte(presented)) != 1 {
		return apperr.Forbidden("invalid admin secret")
	}
	return nil
}
