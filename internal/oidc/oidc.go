package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pdfmarker/pdfmarker/pkg/middleware"
)

// Verifier checks Keycloak-issued bearer tokens against the realm's published keys.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the issuer and returns a verifier for access tokens issued to
// clientID. An empty clientID skips the audience check, since Keycloak access tokens
// carry "account" as audience unless a mapper is configured.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// Verify checks signature, issuer, audience and expiry of raw.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
