package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/virtuallearning/platform/internal/api/middleware"
	"github.com/virtuallearning/platform/internal/core/domain"
)

// currentUser returns the identity attached by the Auth middleware. Its
// absence means the route was mounted without Auth, which is reported as
// unauthenticated rather than trusted.
func currentUser(c echo.Context) (*domain.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

// bindAndValidate decodes the JSON body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.NewValidationError("invalid payload")
	}
	return c.Validate(req)
}
