package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// ErrDenylistDisabled is returned by Revoke when no backend is configured.
var ErrDenylistDisabled = errors.New("token denylist not configured")

// Denylist records revoked access tokens until they expire.
type Denylist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisDenylist stores revoked tokens as keys with a TTL. A nil client disables it:
// Revoke fails with ErrDenylistDisabled and IsRevoked reports false.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

func NewRedisDenylist(client *redis.Client, prefix string) *RedisDenylist {
	if prefix == "" {
		prefix = "denylist:access:"
	}
	return &RedisDenylist{client: client, prefix: prefix}
}

func (d *RedisDenylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if d.client == nil {
		return ErrDenylistDisabled
	}
	return d.client.Set(ctx, d.prefix+token, "1", ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if d.client == nil {
		return false, nil
	}
	n, err := d.client.Exists(ctx, d.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TokenExpiry returns the exp claim of a JWT without verifying its signature.
// Callers only use it on tokens that already passed verification.
func TokenExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	return exp.Time, nil
}
