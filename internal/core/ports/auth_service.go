package ports

import (
	"context"

	"github.com/sewerwatch/portal/internal/core/domain"
)

// AuthService covers the session endpoints of the portal.
type AuthService interface {
	Login(ctx context.Context, clientID, email, password string, remember bool) (*domain.Identity, error)
	Logout(ctx context.Context, clientID string) error
	Profile(ctx context.Context, clientID string) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, clientID string, update domain.ProfileUpdate) (*domain.Identity, error)
}
