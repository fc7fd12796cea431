package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationChecker reports whether a verified token has been revoked (logout).
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
	TokenKey  = "token"
)

type authOptions struct {
	optional bool
	revoked  RevocationChecker
}

type AuthOption func(*authOptions)

// Optional lets requests without an Authorization header through unauthenticated.
// A header that is present must still verify.
func Optional() AuthOption {
	return func(o *authOptions) { o.optional = true }
}

// WithRevocation rejects tokens the checker reports as revoked.
func WithRevocation(r RevocationChecker) AuthOption {
	return func(o *authOptions) { o.revoked = r }
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier, opts ...AuthOption) gin.HandlerFunc {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			if o.optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		if o.revoked != nil {
			revoked, err := o.revoked.IsRevoked(c.Request.Context(), token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "revocation check failed"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		// Extract claims
		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// ClaimsFrom returns the verified claims stored by AuthMiddleware, if any.
func ClaimsFrom(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	cm, ok := v.(map[string]interface{})
	return cm, ok
}
