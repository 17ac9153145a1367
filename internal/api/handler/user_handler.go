package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/virtuallearning/platform/internal/api/middleware"
	"github.com/virtuallearning/platform/internal/core/domain"
	"github.com/virtuallearning/platform/internal/core/ports"
)

const contextKeyTarget = "users.target"

type UserHandler struct {
	authService ports.AuthService
	log         zerolog.Logger
}

func NewUserHandler(authService ports.AuthService, log zerolog.Logger) *UserHandler {
	return &UserHandler{authService: authService, log: log}
}

type setStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student instructor admin"`
}

// LoadTarget resolves the :userId path parameter into a user and exposes it
// to ownership checks further down the chain. A non-admin naming someone
// else is passed on without a lookup so that the ownership check answers 403
// whether or not that user exists.
func (h *UserHandler) LoadTarget(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param(middleware.UserIDParam)
		if caller, ok := middleware.CurrentUser(c); ok && caller.Role != domain.RoleAdmin && caller.ID != id {
			return next(c)
		}

		target, err := h.authService.GetUser(c.Request().Context(), id)
		if err != nil {
			return err
		}
		c.Set(contextKeyTarget, target)
		middleware.SetResource(c, target)
		return next(c)
	}
}

// GetUser returns a user profile to its owner or to an admin.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User ID"
// @Success      200     {object}  userResponse
// @Failure      401     {object}  apierr.Body
// @Failure      403     {object}  apierr.Body
// @Failure      404     {object}  apierr.Body
// @Router       /users/{userId} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	target, ok := c.Get(contextKeyTarget).(*domain.User)
	if !ok {
		user, err := h.authService.GetUser(c.Request().Context(), c.Param(middleware.UserIDParam))
		if err != nil {
			return err
		}
		target = user
	}
	return c.JSON(http.StatusOK, userResponse{User: target})
}

// SetStatus activates or deactivates an account.
//
// @Summary      Activate or deactivate a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string            true  "User ID"
// @Param        body    body      setStatusRequest  true  "Desired state"
// @Success      200     {object}  userResponse
// @Failure      400     {object}  apierr.Body
// @Failure      403     {object}  apierr.Body
// @Failure      404     {object}  apierr.Body
// @Router       /users/{userId}/status [patch]
func (h *UserHandler) SetStatus(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}

	var req setStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.SetActive(c.Request().Context(), actor.ID, c.Param(middleware.UserIDParam), *req.IsActive)
	if err != nil {
		return err
	}

	h.log.Info().
		Str("actor_id", actor.ID).
		Str("user_id", user.ID).
		Bool("is_active", user.IsActive).
		Msg("user status changed")
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// SetRole changes a user's role.
//
// @Summary      Change a user's role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string          true  "User ID"
// @Param        body    body      setRoleRequest  true  "New role"
// @Success      200     {object}  userResponse
// @Failure      400     {object}  apierr.Body
// @Failure      403     {object}  apierr.Body
// @Failure      404     {object}  apierr.Body
// @Router       /users/{userId}/role [patch]
func (h *UserHandler) SetRole(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}

	var req setRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.SetRole(c.Request().Context(), actor.ID, c.Param(middleware.UserIDParam), domain.Role(req.Role))
	if err != nil {
		return err
	}

	h.log.Info().
		Str("actor_id", actor.ID).
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("user role changed")
	return c.JSON(http.StatusOK, userResponse{User: user})
}
