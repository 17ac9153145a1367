package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/virtuallearning/platform/internal/core/domain"
)

func newTestTokenService() *TokenService {
	return NewTokenService(TokenConfig{
		Secret:   "test-secret",
		Issuer:   "vlp-test",
		Audience: "vlp-test-users",
	})
}

func TestTokenService_AccessRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.IssueAccessToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := svc.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != "user-1" {
		t.Fatalf("expected user-1, got %s", id)
	}
}

func TestTokenService_DefaultLifetimes(t *testing.T) {
	svc := newTestTokenService()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	pair, err := svc.IssuePair("user-1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	check := func(raw string, wantTTL time.Duration, wantType string) {
		t.Helper()
		claims := &tokenClaims{}
		_, _, err := jwt.NewParser().ParseUnverified(raw, claims)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != wantTTL {
			t.Fatalf("expected ttl %v, got %v", wantTTL, got)
		}
		if claims.Type != wantType {
			t.Fatalf("expected type %q, got %q", wantType, claims.Type)
		}
		if claims.Issuer != "vlp-test" || len(claims.Audience) != 1 || claims.Audience[0] != "vlp-test-users" {
			t.Fatalf("unexpected issuer/audience: %s %v", claims.Issuer, claims.Audience)
		}
		if claims.ID == "" {
			t.Fatalf("expected jti")
		}
	}
	check(pair.AccessToken, 7*24*time.Hour, TokenTypeAccess)
	check(pair.RefreshToken, 30*24*time.Hour, TokenTypeRefresh)
}

func TestTokenService_TypeConfusionRejected(t *testing.T) {
	svc := newTestTokenService()

	pair, err := svc.IssuePair("user-1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	if _, err := svc.VerifyAccessToken(pair.RefreshToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := svc.VerifyRefreshToken(pair.AccessToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
	if _, err := svc.VerifyRefreshToken(pair.RefreshToken); err != nil {
		t.Fatalf("refresh token rejected: %v", err)
	}
}

func TestTokenService_RefreshWithoutDiscriminatorRejected(t *testing.T) {
	svc := newTestTokenService()

	// Structurally valid, correctly signed, unexpired, but no type claim.
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "vlp-test",
		Audience:  jwt.ClaimStrings{"vlp-test-users"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.VerifyRefreshToken(raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTestTokenService()
	svc.now = func() time.Time { return time.Now().Add(-DefaultAccessTTL - time.Second) }
	access, err := svc.IssueAccessToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(-DefaultRefreshTTL - time.Second) }
	refresh, err := svc.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = time.Now

	if _, err := svc.VerifyAccessToken(access); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := svc.VerifyRefreshToken(refresh); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(domain.ErrTokenExpired, domain.ErrUnauthenticated) {
		t.Fatalf("expired must be a kind of unauthenticated")
	}
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	svc := newTestTokenService()
	token, err := svc.IssueAccessToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, err := svc.IssueAccessToken("user-2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// user-2's payload under user-1's signature.
	parts, otherParts := strings.Split(token, "."), strings.Split(other, ".")
	tampered := parts[0] + "." + otherParts[1] + "." + parts[2]

	tests := []struct {
		name string
		svc  *TokenService
		raw  string
	}{
		{"garbage", svc, "not-a-token"},
		{"tampered", svc, tampered},
		{"other secret", NewTokenService(TokenConfig{Secret: "other", Issuer: "vlp-test", Audience: "vlp-test-users"}), token},
		{"other issuer", NewTokenService(TokenConfig{Secret: "test-secret", Issuer: "someone-else", Audience: "vlp-test-users"}), token},
		{"other audience", NewTokenService(TokenConfig{Secret: "test-secret", Issuer: "vlp-test", Audience: "admins"}), token},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.svc.VerifyAccessToken(tc.raw); !errors.Is(err, domain.ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestTokenService()
	claims := tokenClaims{
		Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "vlp-test",
			Audience:  jwt.ClaimStrings{"vlp-test-users"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.VerifyAccessToken(raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenService_MissingSecret(t *testing.T) {
	svc := NewTokenService(TokenConfig{Issuer: "vlp-test", Audience: "vlp-test-users"})

	if _, err := svc.IssueAccessToken("user-1"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := svc.IssuePair("user-1"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := svc.VerifyAccessToken("x.y.z"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestTokenService_PairsAreUnique(t *testing.T) {
	svc := newTestTokenService()
	a, _ := svc.IssuePair("user-1")
	b, _ := svc.IssuePair("user-1")
	if a.AccessToken == b.AccessToken || a.RefreshToken == b.RefreshToken {
		t.Fatalf("expected distinct tokens for consecutive pairs")
	}
	if strings.Count(a.AccessToken, ".") != 2 {
		t.Fatalf("expected compact JWS, got %s", a.AccessToken)
	}
}
