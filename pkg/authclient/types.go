package authclient

import "time"

// Role mirrors the server's role set.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// User is the identity returned by the API. It never carries credentials.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TokenPair is the access/refresh pair. It is always stored and replaced as
// a whole.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both halves are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// RegisterRequest is the sign-up payload. Fields are checked locally before
// any request is made.
type RegisterRequest struct {
	Name     string `json:"name"           validate:"required"`
	Email    string `json:"email"          validate:"required,email"`
	Password string `json:"password"       validate:"required,min=6"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=student instructor"`
}

// UserPatch holds the fields UpdateUser merges into the cached user. Nil
// fields are left alone.
type UserPatch struct {
	Name     *string
	Email    *string
	Role     *Role
	IsActive *bool
}

// State is a point-in-time copy of the session.
type State struct {
	User          *User
	Authenticated bool
	Loading       bool
	// Ready turns true once Restore has finished, whatever its outcome.
	Ready bool
	// Error is the message of the last failed login or register.
	Error string
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type authResponse struct {
	User *User `json:"user"`
	TokenPair
}

type userResponse struct {
	User *User `json:"user"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
