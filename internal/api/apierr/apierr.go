// Package apierr maps domain failures onto the API error envelope
// {"error": "<CODE>", "message": "<text>"}.
package apierr

import (
	"errors"
	"net/http"

	"github.com/virtuallearning/platform/internal/core/domain"
)

// Machine-stable error codes.
const (
	CodeNoToken                = "NO_TOKEN"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeTokenInvalid           = "TOKEN_INVALID"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeAccountDeactivated     = "ACCOUNT_DEACTIVATED"
	CodeUnauthenticated        = "UNAUTHENTICATED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeForbidden              = "FORBIDDEN"
	CodeValidation             = "VALIDATION_ERROR"
	CodeInvalidCurrentPassword = "INVALID_CURRENT_PASSWORD"
	CodeUserExists             = "USER_EXISTS"
	CodeNotFound               = "NOT_FOUND"
	CodeTooManyAttempts        = "TOO_MANY_ATTEMPTS"
	CodeConfiguration          = "CONFIGURATION_ERROR"
	CodeServerError            = "SERVER_ERROR"
)

// Body is the wire shape of every error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error is a resolved API failure. Cause is kept for logging only.
type Error struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Code + ": " + e.Cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Body renders the client-facing envelope.
func (e *Error) Body() Body {
	return Body{Error: e.Code, Message: e.Message}
}

// Internal reports whether the failure is a server-side defect that must be
// logged at error level and never described to the client.
func (e *Error) Internal() bool {
	return e.Status >= http.StatusInternalServerError
}

// From resolves err into an *Error. Unknown errors become a generic 500.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	status, code, msg := resolve(err)
	return &Error{Status: status, Code: code, Message: msg, Cause: err}
}

func resolve(err error) (int, string, string) {
	var fe *domain.ForbiddenError
	if errors.As(err, &fe) {
		return http.StatusForbidden, CodeForbidden, fe.Error()
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, CodeValidation, ve.Message
	}

	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError, CodeConfiguration, "internal server error"
	case errors.Is(err, domain.ErrNoToken):
		return http.StatusUnauthorized, CodeNoToken, "no token provided"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, CodeTokenExpired, "token expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized, CodeTokenInvalid, "invalid token"
	case errors.Is(err, domain.ErrIdentityNotFound):
		return http.StatusUnauthorized, CodeUserNotFound, "user not found"
	case errors.Is(err, domain.ErrAccountDeactivated):
		return http.StatusUnauthorized, CodeAccountDeactivated, "account deactivated"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated, "authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, CodeForbidden, "access forbidden"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, domain.ErrInvalidCurrentPassword):
		return http.StatusBadRequest, CodeInvalidCurrentPassword, "current password is incorrect"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, CodeUserExists, "a user with this email already exists"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, CodeNotFound, "user not found"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, CodeTooManyAttempts, "too many failed login attempts, try again later"
	}
	return http.StatusInternalServerError, CodeServerError, "internal server error"
}
