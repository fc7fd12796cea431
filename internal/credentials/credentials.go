// Package credentials supplies bearer tokens and the current author identity to the
// annotation client. The variant is chosen when the client is composed; the annotation
// core only sees the Provider and UserProvider interfaces.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pdfmarker/pdfmarker/internal/annotation"
)

// ErrNoUser is returned by user providers that have no identity to offer.
var ErrNoUser = errors.New("no current user")

// Provider supplies a bearer token per outbound call. An empty token means the call
// goes out unauthenticated.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// UserProvider supplies the author identity attached to new comments.
type UserProvider interface {
	CurrentUser(ctx context.Context) (annotation.User, error)
}

// None never authenticates.
type None struct{}

func (None) Token(context.Context) (string, error) { return "", nil }

// Static is the local token store variant: a fixed token configured up front.
type Static string

func (s Static) Token(context.Context) (string, error) { return string(s), nil }

// StaticUser always returns the same author.
type StaticUser annotation.User

func (u StaticUser) CurrentUser(context.Context) (annotation.User, error) {
	if u.ID == "" {
		return annotation.User{}, ErrNoUser
	}
	return annotation.User(u), nil
}

// JWTStore keeps a token obtained elsewhere (e.g. from an identity provider redirect) and
// exposes its claims. Claims are decoded without signature verification; the API server
// is the party that verifies.
type JWTStore struct {
	mu     sync.RWMutex
	token  string
	claims jwt.MapClaims
}

// NewJWTStore returns a store holding token. An empty token yields an empty store.
func NewJWTStore(token string) (*JWTStore, error) {
	s := &JWTStore{}
	if token == "" {
		return s, nil
	}
	if err := s.Save(token); err != nil {
		return nil, err
	}
	return s, nil
}

// Save replaces the stored token after decoding its claims.
func (s *JWTStore) Save(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
	s.claims = claims
	return nil
}

func (s *JWTStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// IsAuthenticated reports whether a token is held.
func (s *JWTStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Permissions returns the "permissions" claim, if any.
func (s *JWTStore) Permissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.claims["permissions"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if ps, ok := p.(string); ok {
			out = append(out, ps)
		}
	}
	return out
}

// CurrentUser maps the standard claims onto an author reference.
func (s *JWTStore) CurrentUser(context.Context) (annotation.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, _ := s.claims["sub"].(string)
	if sub == "" {
		return annotation.User{}, ErrNoUser
	}
	u := annotation.User{ID: sub}
	u.Email, _ = s.claims["email"].(string)
	u.Role, _ = s.claims["role"].(string)
	for _, k := range []string{"name", "preferred_username", "nickname"} {
		if v, ok := s.claims[k].(string); ok && v != "" {
			u.Name = v
			break
		}
	}
	return u, nil
}
