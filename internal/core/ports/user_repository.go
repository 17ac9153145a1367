package ports

import (
	"context"

	"github.com/virtuallearning/platform/internal/core/domain"
)

// UserRepository is the system of record for identities.
type UserRepository interface {
	// FindByEmail returns the full record including the password hash.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindByID returns the record without credential fields.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindCredentialsByID returns the record including the password hash.
	FindCredentialsByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) (*domain.User, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
}

// LoginLimiter throttles repeated failed logins for the same account.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}
