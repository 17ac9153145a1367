package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Machine codes the API puts in the "error" field.
const (
	CodeNoToken                = "NO_TOKEN"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeTokenInvalid           = "TOKEN_INVALID"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeAccountDeactivated     = "ACCOUNT_DEACTIVATED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeForbidden              = "FORBIDDEN"
	CodeValidation             = "VALIDATION_ERROR"
	CodeInvalidCurrentPassword = "INVALID_CURRENT_PASSWORD"
	CodeUserExists             = "USER_EXISTS"
	CodeTooManyAttempts        = "TOO_MANY_ATTEMPTS"
)

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by a
	// refresh. The session has been cleared by the time it is returned.
	ErrSessionExpired = errors.New("authclient: session expired")
	// ErrNoRefreshToken means there was nothing to exchange.
	ErrNoRefreshToken = errors.New("authclient: no refresh token")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authclient: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("authclient: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden reports whether err is an APIError with status 403.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == status
}

// ValidationError lists the register fields that failed local checks.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = e.Fields[k]
	}
	return "authclient: invalid registration: " + strings.Join(msgs, "; ")
}

// parseErrorResponse turns an error body into an *APIError. Bodies that are
// not the API's envelope still produce an error carrying the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	ae := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		ae.Code = er.Error
		ae.Message = er.Message
	}
	return ae
}

// errorMessage is what the session records as its user-facing error.
func errorMessage(err error) string {
	var ae *APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
