package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/virtuallearning/platform/internal/api/apierr"
	"github.com/virtuallearning/platform/pkg/logger"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Resolves domain errors into a status and a machine-readable code.
//   - Logs unexpected errors through the request-scoped logger without leaking
//     details to the client.
//   - Renders a consistent JSON envelope: {"error": "<CODE>", "message": "<text>"}.
func NewHTTPErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func resolveError(err error, c echo.Context) (int, apierr.Body) {
	// Echo's own errors (router 404/405, rate limiter, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) && !isAPIError(err) {
		return he.Code, apierr.Body{
			Error:   httpCode(he.Code),
			Message: fmt.Sprintf("%v", he.Message),
		}
	}

	ae := apierr.From(err)
	if ae.Internal() {
		logger.FromContext(c.Request().Context()).Error().
			Err(err).
			Str("code", ae.Code).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("unhandled error")
	}
	return ae.Status, ae.Body()
}

func isAPIError(err error) bool {
	var ae *apierr.Error
	return errors.As(err, &ae)
}

// httpCode turns a bare status into an upper snake case code, e.g. 404 -> NOT_FOUND.
func httpCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return apierr.CodeServerError
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
