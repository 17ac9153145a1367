package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/virtuallearning/platform/internal/api/apierr"
	"github.com/virtuallearning/platform/internal/api/metrics"
	"github.com/virtuallearning/platform/internal/core/domain"
	"github.com/virtuallearning/platform/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

type registerRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role"     validate:"omitempty,oneof=student instructor"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,min=6"`
}

type authResponse struct {
	User         *domain.User `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

type statusResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

type emptyResponse struct{}

// Register creates a new account and signs it in.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Profile and credentials"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  apierr.Body
// @Failure      409   {object}  apierr.Body
// @Failure      500   {object}  apierr.Body
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return h.fail("register", err)
	}

	res, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		return h.fail("register", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	return c.JSON(http.StatusCreated, authResponse{User: res.User, Token: res.Tokens.AccessToken, RefreshToken: res.Tokens.RefreshToken})
}

// Login authenticates with email and password and returns a token pair.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  apierr.Body
// @Failure      401   {object}  apierr.Body
// @Failure      429   {object}  apierr.Body
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return h.fail("login", err)
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.fail("login", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	h.log.Info().Str("user_id", res.User.ID).Msg("login succeeded")
	return c.JSON(http.StatusOK, authResponse{User: res.User, Token: res.Tokens.AccessToken, RefreshToken: res.Tokens.RefreshToken})
}

// Refresh exchanges a refresh token for a new token pair.
//
// @Summary      Refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  tokenResponse
// @Failure      401   {object}  apierr.Body
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return h.fail("refresh", domain.NewValidationError("invalid payload"))
	}
	if req.RefreshToken == "" {
		return h.fail("refresh", domain.ErrNoToken)
	}

	pair, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return h.fail("refresh", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("refresh", "success").Inc()
	return c.JSON(http.StatusOK, tokenResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Me returns the identity behind the bearer token.
//
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  userResponse
// @Failure      401   {object}  apierr.Body
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// Status reports whether the caller is signed in without ever rejecting.
//
// @Summary      Session status
// @Tags         auth
// @Produce      json
// @Success      200   {object}  statusResponse
// @Router       /auth/status [get]
func (h *AuthHandler) Status(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusOK, statusResponse{Authenticated: false})
	}
	return c.JSON(http.StatusOK, statusResponse{Authenticated: true, User: user})
}

// Logout acknowledges a sign-out. Tokens are stateless, so there is nothing
// to revoke server-side; clients drop their stored pair.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  emptyResponse
// @Failure      401   {object}  apierr.Body
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	h.log.Info().Str("user_id", user.ID).Msg("logout")
	return c.JSON(http.StatusOK, emptyResponse{})
}

// ChangePassword replaces the caller's password.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  emptyResponse
// @Failure      400   {object}  apierr.Body
// @Failure      401   {object}  apierr.Body
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return h.fail("change_password", err)
	}

	if err := h.authService.ChangePassword(c.Request().Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return h.fail("change_password", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("change_password", "success").Inc()
	return c.JSON(http.StatusOK, emptyResponse{})
}

// fail records the outcome and hands the resolved error to the central
// error handler.
func (h *AuthHandler) fail(operation string, err error) error {
	ae := apierr.From(err)
	metrics.AuthAttemptsTotal.WithLabelValues(operation, ae.Code).Inc()
	if ae.Code == apierr.CodeTooManyAttempts {
		metrics.LoginLockoutsTotal.Inc()
	}
	return ae
}
