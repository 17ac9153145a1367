package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/virtuallearning/platform/internal/api/apierr"
	"github.com/virtuallearning/platform/internal/api/middleware"
	"github.com/virtuallearning/platform/internal/core/domain"
	"github.com/virtuallearning/platform/internal/core/ports"
)

type stubAuthService struct {
	registerFn       func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	loginFn          func(ctx context.Context, email, password string) (*ports.AuthResult, error)
	refreshFn        func(ctx context.Context, token string) (domain.TokenPair, error)
	changePasswordFn func(ctx context.Context, userID, current, next string) error
	getUserFn        func(ctx context.Context, userID string) (*domain.User, error)
	setActiveFn      func(ctx context.Context, actorID, userID string, active bool) (*domain.User, error)
	setRoleFn        func(ctx context.Context, actorID, userID string, role domain.Role) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	return nil, domain.ErrTokenInvalid
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (domain.TokenPair, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	return s.changePasswordFn(ctx, userID, current, next)
}

func (s *stubAuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUserFn(ctx, userID)
}

func (s *stubAuthService) SetActive(ctx context.Context, actorID, userID string, active bool) (*domain.User, error) {
	return s.setActiveFn(ctx, actorID, userID, active)
}

func (s *stubAuthService) SetRole(ctx context.Context, actorID, userID string, role domain.Role) (*domain.User, error) {
	return s.setRoleFn(ctx, actorID, userID, role)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func newJSONContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func alice() *domain.User {
	return &domain.User{ID: "u1", Name: "Alice", Email: "a@b.com", Role: domain.RoleStudent, IsActive: true}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func expectAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	ae := apierr.From(err)
	if ae.Status != status || ae.Code != code {
		t.Fatalf("expected %d %s, got %d %s (%v)", status, code, ae.Status, ae.Code, err)
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			if in.Name != "Alice" || in.Email != "a@b.com" || in.Role != domain.RoleInstructor {
				t.Fatalf("unexpected input: %+v", in)
			}
			u := alice()
			u.Role = in.Role
			return &ports.AuthResult{User: u, Tokens: domain.TokenPair{AccessToken: "acc", RefreshToken: "ref"}}, nil
		},
	}
	h := NewAuthHandler(stub, zerolog.Nop())

	c, rec := newJSONContext(e, http.MethodPost, "/auth/register",
		`{"name":"Alice","email":"a@b.com","password":"secret1","role":"instructor"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["token"] != "acc" || resp["refreshToken"] != "ref" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["role"] != "instructor" || user["email"] != "a@b.com" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatalf("password hash leaked: %+v", user)
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{}, zerolog.Nop())

	cases := map[string]string{
		"missing name": `{"email":"a@b.com","password":"secret1"}`,
		"bad email":    `{"name":"A","email":"nope","password":"secret1"}`,
		"short pw":     `{"name":"A","email":"a@b.com","password":"abc"}`,
		"admin role":   `{"name":"A","email":"a@b.com","password":"secret1","role":"admin"}`,
		"invalid json": `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newJSONContext(e, http.MethodPost, "/auth/register", body)
			expectAPIError(t, h.Register(c), http.StatusBadRequest, apierr.CodeValidation)
		})
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			return nil, domain.ErrUserExists
		},
	}
	h := NewAuthHandler(stub, zerolog.Nop())

	c, _ := newJSONContext(e, http.MethodPost, "/auth/register", `{"name":"A","email":"a@b.com","password":"secret1"}`)
	expectAPIError(t, h.Register(c), http.StatusConflict, apierr.CodeUserExists)
}

func TestAuthHandler_Login(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*ports.AuthResult, error) {
			if email == "a@b.com" && password == "correct" {
				return &ports.AuthResult{User: alice(), Tokens: domain.TokenPair{AccessToken: "acc", RefreshToken: "ref"}}, nil
			}
			return nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(stub, zerolog.Nop())

	c, rec := newJSONContext(e, http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"correct"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["token"] != "acc" || resp["refreshToken"] != "ref" || resp["user"] == nil {
		t.Fatalf("unexpected body: %+v", resp)
	}

	c, _ = newJSONContext(e, http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"wrong"}`)
	expectAPIError(t, h.Login(c), http.StatusUnauthorized, apierr.CodeInvalidCredentials)
}

func TestAuthHandler_Login_Throttled(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*ports.AuthResult, error) {
			return nil, domain.ErrTooManyAttempts
		},
	}
	h := NewAuthHandler(stub, zerolog.Nop())

	c, _ := newJSONContext(e, http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"x"}`)
	expectAPIError(t, h.Login(c), http.StatusTooManyRequests, apierr.CodeTooManyAttempts)
}

func TestAuthHandler_Refresh(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		refreshFn: func(ctx context.Context, token string) (domain.TokenPair, error) {
			switch token {
			case "good":
				return domain.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}, nil
			case "old":
				return domain.TokenPair{}, domain.ErrTokenExpired
			}
			return domain.TokenPair{}, domain.ErrTokenInvalid
		},
	}
	h := NewAuthHandler(stub, zerolog.Nop())

	c, rec := newJSONContext(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"good"}`)
	if err := h.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["token"] != "acc2" || resp["refreshToken"] != "ref2" {
		t.Fatalf("unexpected body: %+v", resp)
	}

	c, _ = newJSONContext(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"old"}`)
	expectAPIError(t, h.Refresh(c), http.StatusUnauthorized, apierr.CodeTokenExpired)

	c, _ = newJSONContext(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"forged"}`)
	expectAPIError(t, h.Refresh(c), http.StatusUnauthorized, apierr.CodeTokenInvalid)

	c, _ = newJSONContext(e, http.MethodPost, "/auth/refresh", `{}`)
	expectAPIError(t, h.Refresh(c), http.StatusUnauthorized, apierr.CodeNoToken)
}

func TestAuthHandler_Me(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{}, zerolog.Nop())

	c, rec := newJSONContext(e, http.MethodGet, "/auth/me", "")
	c.Set(middleware.ContextKeyUser, alice())
	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	user, ok := decode(t, rec)["user"].(map[string]any)
	if !ok || user["id"] != "u1" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	c, _ = newJSONContext(e, http.MethodGet, "/auth/me", "")
	expectAPIError(t, h.Me(c), http.StatusUnauthorized, apierr.CodeUnauthenticated)
}

func TestAuthHandler_Status(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{}, zerolog.Nop())

	c, rec := newJSONContext(e, http.MethodGet, "/auth/status", "")
	if err := h.Status(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if resp := decode(t, rec); resp["authenticated"] != false || resp["user"] != nil {
		t.Fatalf("unexpected anonymous body: %+v", resp)
	}

	c, rec = newJSONContext(e, http.MethodGet, "/auth/status", "")
	c.Set(middleware.ContextKeyUser, alice())
	if err := h.Status(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if resp := decode(t, rec); resp["authenticated"] != true || resp["user"] == nil {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{}, zerolog.Nop())

	c, rec := newJSONContext(e, http.MethodPost, "/auth/logout", "")
	c.Set(middleware.ContextKeyUser, alice())
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	e := newTestEcho()
	var gotUser string
	stub := &stubAuthService{
		changePasswordFn: func(ctx context.Context, userID, current, next string) error {
			gotUser = userID
			if current != "old-secret" {
				return domain.ErrInvalidCurrentPassword
			}
			return nil
		},
	}
	h := NewAuthHandler(stub, zerolog.Nop())

	c, rec := newJSONContext(e, http.MethodPost, "/auth/change-password", `{"currentPassword":"old-secret","newPassword":"new-secret"}`)
	c.Set(middleware.ContextKeyUser, alice())
	if err := h.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || gotUser != "u1" {
		t.Fatalf("unexpected result: %d user=%q", rec.Code, gotUser)
	}

	// A wrong current password is a 400 so clients never treat it as an
	// expired session.
	c, _ = newJSONContext(e, http.MethodPost, "/auth/change-password", `{"currentPassword":"nope","newPassword":"new-secret"}`)
	c.Set(middleware.ContextKeyUser, alice())
	expectAPIError(t, h.ChangePassword(c), http.StatusBadRequest, apierr.CodeInvalidCurrentPassword)

	c, _ = newJSONContext(e, http.MethodPost, "/auth/change-password", `{"currentPassword":"old-secret","newPassword":"x"}`)
	c.Set(middleware.ContextKeyUser, alice())
	expectAPIError(t, h.ChangePassword(c), http.StatusBadRequest, apierr.CodeValidation)
}
