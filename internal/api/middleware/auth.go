package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/virtuallearning/platform/internal/api/apierr"
	"github.com/virtuallearning/platform/internal/api/metrics"
	"github.com/virtuallearning/platform/internal/core/domain"
)

// ContextKeyUser is the echo context key holding the authenticated *domain.User.
const ContextKeyUser = "auth.user"

// Authenticator resolves a raw access token to a live identity.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*domain.User, error)
}

// Auth rejects the request unless a valid access token resolves to an
// active user, which is then attached to the context.
func Auth(authn Authenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := authn.Authenticate(c.Request().Context(), BearerToken(c))
			if err != nil {
				ae := apierr.From(err)
				metrics.TokenVerificationsTotal.WithLabelValues("required", ae.Code).Inc()
				logAuthFailure(log, c, ae)
				return ae
			}

			metrics.TokenVerificationsTotal.WithLabelValues("required", "success").Inc()
			setUser(c, user)
			return next(c)
		}
	}
}

// OptionalAuth attaches the identity when the token checks out and otherwise
// lets the request through anonymously. Credential failures never reject;
// configuration and server errors still fail the request.
func OptionalAuth(authn Authenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c)
			if raw == "" {
				return next(c)
			}

			user, err := authn.Authenticate(c.Request().Context(), raw)
			if err != nil {
				ae := apierr.From(err)
				metrics.TokenVerificationsTotal.WithLabelValues("optional", ae.Code).Inc()
				if ae.Internal() {
					logAuthFailure(log, c, ae)
					return ae
				}
				return next(c)
			}

			metrics.TokenVerificationsTotal.WithLabelValues("optional", "success").Inc()
			setUser(c, user)
			return next(c)
		}
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// Any other shape yields "".
func BearerToken(c echo.Context) string {
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CurrentUser returns the identity attached by Auth or OptionalAuth.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(ContextKeyUser).(*domain.User)
	return user, ok && user != nil
}

func setUser(c echo.Context, user *domain.User) {
	c.Set(ContextKeyUser, user)
}

func logAuthFailure(log zerolog.Logger, c echo.Context, ae *apierr.Error) {
	if ae.Internal() {
		log.Error().Err(ae.Cause).Str("code", ae.Code).Str("path", c.Path()).Msg("authentication failed")
		return
	}
	log.Warn().Str("code", ae.Code).Str("path", c.Path()).Str("ip", c.RealIP()).Msg("authentication rejected")
}
