package users

import (
	"context"

	"github.com/pdfmarker/pdfmarker/internal/models"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates a user from verified token claims.
// Returns (nil, nil) when the claims carry no subject.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, nil
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	// Keycloak sends preferred_username, Auth0 sends nickname
	for _, k := range []string{"preferred_username", "nickname"} {
		if name != "" {
			break
		}
		name, _ = claims[k].(string)
	}
	role, _ := claims["role"].(string)
	u := &models.User{
		Sub:   sub,
		Email: email,
		Name:  name,
		Role:  role,
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}
