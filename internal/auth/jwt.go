package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/templates-hub/templates-hub/internal/apperr"
)

// StaticIssuer is the issuer recorded for identities verified with the
// static shared-secret verifier.
const StaticIssuer = "templates-hub-static"

// StaticVerifier validates HS256 tokens signed with a shared secret. It
// exists for development and test environments where running an OIDC
// provider is overkill; production deployments use OIDCVerifier.
type StaticVerifier struct {
	secret []byte
}

// NewStaticVerifier creates a shared-secret verifier.
func NewStaticVerifier(secret string) (*StaticVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("static JWT secret must not be empty")
	}
	return &StaticVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token signature and expiry, and extracts
// the subject and issuer claims. Tokens without an issuer claim are
// attributed to StaticIssuer.
func (v *StaticVerifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, apperr.Unauthenticated(fmt.Sprintf("invalid token: %v", err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.Unauthenticated("invalid token claims")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, apperr.Unauthenticated("token has no subject claim")
	}

	issuer, err := claims.GetIssuer()
	if err != nil || issuer == "" {
		issuer = StaticIssuer
	}

	return &Identity{Subject: subject, Issuer: issuer}, nil
}
