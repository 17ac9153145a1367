package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/virtuallearning/platform/internal/api/metrics"
	"github.com/virtuallearning/platform/internal/core/domain"
)

const (
	// ContextKeyResource holds the domain.OwnedResource loaded for the request.
	ContextKeyResource = "auth.resource"
	// UserIDParam is the path parameter that names a user.
	UserIDParam = "userId"
)

// RequireRole enforces role-based access control. The allowed set is fixed
// when the route is registered.
func RequireRole(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}
	required := append([]domain.Role(nil), allowedRoles...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return domain.ErrUnauthenticated
			}
			if _, ok := allowed[user.Role]; !ok {
				metrics.AuthorizationDenialsTotal.WithLabelValues("role").Inc()
				return &domain.ForbiddenError{Required: required}
			}
			return next(c)
		}
	}
}

// RequireOwnershipOrAdmin lets admins through unconditionally. Anyone else
// must own the loaded resource (its resourceField equals the caller id) or be
// named by the :userId path parameter.
func RequireOwnershipOrAdmin(resourceField string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return domain.ErrUnauthenticated
			}
			if user.Role == domain.RoleAdmin || owns(c, user.ID, resourceField) {
				return next(c)
			}

			metrics.AuthorizationDenialsTotal.WithLabelValues("ownership").Inc()
			return &domain.ForbiddenError{Reason: "you do not own this resource"}
		}
	}
}

// SetResource attaches the resource an ownership check should inspect.
func SetResource(c echo.Context, r domain.OwnedResource) {
	c.Set(ContextKeyResource, r)
}

func owns(c echo.Context, userID, field string) bool {
	if userID == "" {
		return false
	}
	if r, ok := c.Get(ContextKeyResource).(domain.OwnedResource); ok && r != nil {
		if owner, found := r.OwnerID(field); found && owner == userID {
			return true
		}
	}
	return c.Param(UserIDParam) == userID
}
