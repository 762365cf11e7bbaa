package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/auth"
	"github.com/geonotify/geonotify/internal/subject"
)

const (
	testIssuer   = "https://api.geonotify.dev"
	testAudience = "geonotify-api"
)

func newService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", testIssuer, testAudience)

	token, expiresAt, err := svc.GenerateAccessToken(auth.Identity{SubjectID: "sub_123", Role: subject.RoleRescue})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	id, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sub_123", id.SubjectID)
	assert.Equal(t, subject.RoleRescue, id.Role)
	assert.True(t, id.HasRole(subject.RoleAdmin, subject.RoleRescue))
	assert.False(t, id.HasRole(subject.RoleAdmin))
}

func TestJWTService_GenerateRejectsBadIdentity(t *testing.T) {
	svc := newService("key", testIssuer, testAudience)

	_, _, err := svc.GenerateAccessToken(auth.Identity{Role: subject.RoleTourist})
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)

	_, _, err = svc.GenerateAccessToken(auth.Identity{SubjectID: "sub_1", Role: "pilot"})
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)

	_, _, err = newService("", testIssuer, testAudience).GenerateAccessToken(auth.Identity{SubjectID: "sub_1", Role: subject.RoleTourist})
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", testIssuer, testAudience)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Mismatch(t *testing.T) {
	issuer := newService("key-one", testIssuer, testAudience)
	token, _, err := issuer.GenerateAccessToken(auth.Identity{SubjectID: "sub_1", Role: subject.RoleTourist})
	require.NoError(t, err)

	tests := []struct {
		name      string
		validator *auth.JWTService
	}{
		{"wrong signing key", newService("key-two", testIssuer, testAudience)},
		{"wrong issuer", newService("key-one", "issuer-two", testAudience)},
		{"wrong audience", newService("key-one", testIssuer, "audience-two")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validator.ValidateAccessToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "key",
		Issuer:     testIssuer,
		Audience:   testAudience,
		Now:        func() time.Time { return issued },
	})
	token, _, err := svc.GenerateAccessToken(auth.Identity{SubjectID: "sub_1", Role: subject.RoleTourist})
	require.NoError(t, err)

	_, err = newService("key", testIssuer, testAudience).ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_RejectsUnknownRole(t *testing.T) {
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "sub_1",
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SubjectID: "sub_1",
		Role:      "superuser",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("key"))
	require.NoError(t, err)

	_, err = newService("key", testIssuer, testAudience).ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}
