package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/templates-hub/templates-hub/internal/apperr"
	"github.com/templates-hub/templates-hub/internal/config"
)

// OIDCVerifier validates ID tokens against a configured OIDC provider. The
// provider's signing keys are fetched via discovery and cached by the
// underlying library.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	issuer   string
}

// NewOIDCVerifier initializes a verifier using a background context.
func NewOIDCVerifier(cfg *config.OIDCConfig) (*OIDCVerifier, error) {
	return NewOIDCVerifierWithContext(context.Background(), cfg)
}

// NewOIDCVerifierWithContext initializes a verifier with the given context,
// allowing callers to set deadlines or cancellation for the OIDC discovery
// request.
func NewOIDCVerifierWithContext(ctx context.Context, cfg *config.OIDCConfig) (*OIDCVerifier, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("OIDC is not enabled")
	}
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("OIDC issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("OIDC client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		issuer:   cfg.IssuerURL,
	}, nil
}

// Verify validates the raw ID token and returns the caller identity.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, apperr.Unauthenticated(fmt.Sprintf("invalid token: %v", err))
	}

	if idToken.Subject == "" {
		return nil, apperr.Unauthenticated("token has no subject claim")
	}

	return &Identity{
		Subject: idToken.Subject,
		Issuer:  idToken.Issuer,
	}, nil
}
