package domain

import "time"

// AuditAction names a security-relevant account event.
type AuditAction string

const (
	AuditRegistered      AuditAction = "registered"
	AuditLoginSucceeded  AuditAction = "login_succeeded"
	AuditLoginFailed     AuditAction = "login_failed"
	AuditLoginThrottled  AuditAction = "login_throttled"
	AuditTokenRefreshed  AuditAction = "token_refreshed"
	AuditPasswordChanged AuditAction = "password_changed"
	AuditStatusChanged   AuditAction = "status_changed"
	AuditRoleChanged     AuditAction = "role_changed"
)

// AuditEvent is one entry of the account audit trail.
type AuditEvent struct {
	Action AuditAction
	// UserID is the account the event is about. Empty for failed logins
	// against unknown emails.
	UserID string
	// ActorID performed the action; equal to UserID for self-service.
	ActorID    string
	Email      string
	Detail     string
	OccurredAt time.Time
}

// SubjectKey identifies whose trail the event belongs to. Events sharing a
// key are recorded in order.
func (e AuditEvent) SubjectKey() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Email
}
