package ports

import "github.com/virtuallearning/platform/internal/core/domain"

// TokenService mints and verifies the access/refresh credential pair.
// Verification only proves the token; it returns the embedded user id.
type TokenService interface {
	IssueAccessToken(userID string) (string, error)
	IssueRefreshToken(userID string) (string, error)
	IssuePair(userID string) (domain.TokenPair, error)
	VerifyAccessToken(raw string) (string, error)
	VerifyRefreshToken(raw string) (string, error)
}
