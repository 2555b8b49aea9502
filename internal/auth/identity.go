// Package auth verifies caller identity for score submissions and guards the
// admin endpoints. Identities come from OIDC bearer tokens; a static HS256
// verifier exists for development and tests. Users are keyed by the (subject,
// issuer) claim pair so the same subject from two identity providers never
// collides.
package auth

import "context"

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	Subject string
	Issuer  string
}

// TokenVerifier validates a raw bearer token and extracts the caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}
