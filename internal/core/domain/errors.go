package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthenticated is the parent of every credential failure. All of them
// map to 401.
var ErrUnauthenticated = errors.New("unauthenticated")

var (
	ErrNoToken            = fmt.Errorf("%w: no token provided", ErrUnauthenticated)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	ErrTokenInvalid       = fmt.Errorf("%w: token invalid", ErrUnauthenticated)
	ErrIdentityNotFound   = fmt.Errorf("%w: user not found", ErrUnauthenticated)
	ErrAccountDeactivated = fmt.Errorf("%w: account deactivated", ErrUnauthenticated)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
)

var (
	ErrForbidden              = errors.New("access forbidden")
	ErrConfiguration          = errors.New("configuration error")
	ErrUserNotFound           = errors.New("user not found")
	ErrUserExists             = errors.New("user already exists")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrTooManyAttempts        = errors.New("too many failed login attempts")
)

// ForbiddenError carries the roles a denied request would have needed.
type ForbiddenError struct {
	Required []Role
	Reason   string
}

func (e *ForbiddenError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if len(e.Required) == 0 {
		return ErrForbidden.Error()
	}
	roles := make([]string, len(e.Required))
	for i, r := range e.Required {
		roles[i] = string(r)
	}
	return "requires one of roles: " + strings.Join(roles, ", ")
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a convenience for services that reject input.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
