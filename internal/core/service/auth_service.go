package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/virtuallearning/platform/internal/core/domain"
	"github.com/virtuallearning/platform/internal/core/ports"
)

const minPasswordLength = 6

var fieldValidator = validator.New()

// AuthService implements registration, login, token refresh and the
// per-request identity resolution behind the auth gate.
type AuthService struct {
	repo    ports.UserRepository
	tokens  ports.TokenService
	limiter ports.LoginLimiter
	audit   ports.AuditRecorder
	log     zerolog.Logger
}

// NewAuthService wires the service. limiter may be nil, in which case failed
// logins are never throttled.
func NewAuthService(repo ports.UserRepository, tokens ports.TokenService, limiter ports.LoginLimiter, log zerolog.Logger) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, limiter: limiter, log: log}
}

// WithAudit makes the service report account events to r.
func (s *AuthService) WithAudit(r ports.AuditRecorder) *AuthService {
	s.audit = r
	return s
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = domain.RoleStudent
	}

	switch {
	case in.Name == "":
		return nil, domain.NewValidationError("name is required")
	case in.Email == "":
		return nil, domain.NewValidationError("email is required")
	case !validEmail(in.Email):
		return nil, domain.NewValidationError("email must be a valid email")
	case len(in.Password) < minPasswordLength:
		return nil, domain.NewValidationError("password must be at least %d characters", minPasswordLength)
	case in.Role != domain.RoleStudent && in.Role != domain.RoleInstructor:
		return nil, domain.NewValidationError("role must be one of: student instructor")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.repo.Create(ctx, &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(created.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user registered")
	s.record(domain.AuditEvent{Action: domain.AuditRegistered, UserID: created.ID, ActorID: created.ID, Email: created.Email})
	return &ports.AuthResult{User: publicUser(created), Tokens: pair}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			s.log.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
		} else if !allowed {
			s.record(domain.AuditEvent{Action: domain.AuditLoginThrottled, Email: email})
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.recordFailure(ctx, email)
			s.record(domain.AuditEvent{Action: domain.AuditLoginFailed, Email: email, Detail: "unknown email"})
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.recordFailure(ctx, email)
		s.record(domain.AuditEvent{Action: domain.AuditLoginFailed, UserID: user.ID, Email: email, Detail: "wrong password"})
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.record(domain.AuditEvent{Action: domain.AuditLoginFailed, UserID: user.ID, Email: email, Detail: "account deactivated"})
		return nil, domain.ErrAccountDeactivated
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("failed to reset login limiter")
		}
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}
	s.record(domain.AuditEvent{Action: domain.AuditLoginSucceeded, UserID: user.ID, ActorID: user.ID, Email: email})
	return &ports.AuthResult{User: publicUser(user), Tokens: pair}, nil
}

// Authenticate runs the gate steps in order: token proof, identity lookup,
// active check. Nothing is read from the store before the token is proven.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*domain.User, error) {
	if rawToken == "" {
		return nil, domain.ErrNoToken
	}

	userID, err := s.tokens.VerifyAccessToken(rawToken)
	if err != nil {
		return nil, err
	}
	return s.loadActive(ctx, userID)
}

// Refresh exchanges a refresh token for a brand new pair. The identity is
// re-resolved so a deactivated account cannot keep refreshing.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if refreshToken == "" {
		return domain.TokenPair{}, domain.ErrNoToken
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if _, err := s.loadActive(ctx, userID); err != nil {
		return domain.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	s.record(domain.AuditEvent{Action: domain.AuditTokenRefreshed, UserID: userID, ActorID: userID})
	return pair, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return domain.NewValidationError("currentPassword is required")
	}
	if len(newPassword) < minPasswordLength {
		return domain.NewValidationError("newPassword must be at least %d characters", minPasswordLength)
	}

	user, err := s.repo.FindCredentialsByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return domain.ErrInvalidCurrentPassword
	}
	if currentPassword == newPassword {
		return domain.NewValidationError("newPassword must differ from the current password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.log.Info().Str("user_id", userID).Msg("password changed")
	s.record(domain.AuditEvent{Action: domain.AuditPasswordChanged, UserID: userID, ActorID: userID})
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// SetActive flips the active flag. Deactivation takes effect on the very next
// verified request because the gate reads the flag live.
func (s *AuthService) SetActive(ctx context.Context, actorID, userID string, active bool) (*domain.User, error) {
	if actorID == userID && !active {
		return nil, &domain.ForbiddenError{Reason: "administrators cannot deactivate their own account"}
	}

	user, err := s.repo.SetActive(ctx, userID, active)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("actor_id", actorID).Str("user_id", userID).Bool("active", active).Msg("account status changed")
	s.record(domain.AuditEvent{Action: domain.AuditStatusChanged, UserID: userID, ActorID: actorID, Detail: fmt.Sprintf("active=%t", active)})
	return user, nil
}

func (s *AuthService) SetRole(ctx context.Context, actorID, userID string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.NewValidationError("role must be one of: student instructor admin")
	}
	if actorID == userID && role != domain.RoleAdmin {
		return nil, &domain.ForbiddenError{Reason: "administrators cannot demote themselves"}
	}

	user, err := s.repo.SetRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("actor_id", actorID).Str("user_id", userID).Str("role", string(role)).Msg("role changed")
	s.record(domain.AuditEvent{Action: domain.AuditRoleChanged, UserID: userID, ActorID: actorID, Detail: "role=" + string(role)})
	return user, nil
}

func (s *AuthService) loadActive(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDeactivated
	}
	return user, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if _, err := s.limiter.RecordFailure(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to record login failure")
	}
}

func (s *AuthService) record(event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	s.audit.Record(event)
}

func publicUser(u *domain.User) *domain.User {
	clone := *u
	clone.PasswordHash = ""
	return &clone
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return fieldValidator.Var(email, "email") == nil
}
