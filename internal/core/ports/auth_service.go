package ports

import (
	"context"

	"github.com/virtuallearning/platform/internal/core/domain"
)

// RegisterInput carries the profile fields accepted at sign-up.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// AuthResult is returned by login and register.
type AuthResult struct {
	User   *domain.User
	Tokens domain.TokenPair
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate verifies an access token and loads the live identity.
	Authenticate(ctx context.Context, rawToken string) (*domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	SetActive(ctx context.Context, actorID, userID string, active bool) (*domain.User, error)
	SetRole(ctx context.Context, actorID, userID string, role domain.Role) (*domain.User, error)
}
