package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pdfmarker/pdfmarker/pkg/middleware"
)

// ErrMissingExpiry rejects tokens that never expire.
var ErrMissingExpiry = errors.New("token has no exp claim")

// HMACVerifier accepts HS256 tokens signed with the shared JWT_SECRET (see tokens.GenerateAccessToken).
// Tokens must carry an exp claim.
type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("hmac verifier: empty secret")
	}
	return &HMACVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

func (v *HMACVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, ErrMissingExpiry
	}
	return &claimsToken{claims: claims}, nil
}

// Chain tries each verifier in order and returns the first success.
type Chain []middleware.Verifier

func (c Chain) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if len(c) == 0 {
		return nil, errors.New("no verifier configured")
	}
	var errs []error
	for _, v := range c {
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("token rejected: %w", errors.Join(errs...))
}
