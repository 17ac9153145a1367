package domain

import "time"

// Role is the closed set of principals the platform authorizes against.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// User models an identity in the system of record.
//
// Role and IsActive are always read from the store at verification time;
// tokens only carry the ID.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OwnerID satisfies OwnedResource so a loaded user can be checked by
// ownership rules; the only owner field of a user is its own id.
func (u *User) OwnerID(field string) (string, bool) {
	if field == "id" || field == "_id" {
		return u.ID, true
	}
	return "", false
}

// OwnedResource is a resource loaded ahead of an ownership check.
type OwnedResource interface {
	OwnerID(field string) (string, bool)
}

// TokenPair is the access/refresh credential pair handed to clients.
// It is always replaced as a whole.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
