package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pdfmarker/pdfmarker/internal/config"
	"github.com/pdfmarker/pdfmarker/internal/models"
)

// GenerateAccessToken creates an HS256 access token for the user, accepted by oidc.HMACVerifier.
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	if cfg.JWT.Secret == "" {
		return "", errors.New("JWT secret is not configured")
	}
	if ttl <= 0 {
		ttl = cfg.JWT.AccessTokenTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.Sub,
		"name":  u.Name,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if u.Role != "" {
		claims["role"] = u.Role
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}
