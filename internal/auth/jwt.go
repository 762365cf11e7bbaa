// Package auth issues and validates the access tokens of GeoNotify.
//
// Access tokens are HS256 JWTs carrying the subject id (sub and sid) and the
// subject's role. Tokens are issued by the identity front end or by
// geonotifyctl for operators; this service never stores them.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/geonotify/geonotify/internal/subject"
)

// AccessTokenExpiry is the default validity of access tokens.
const AccessTokenExpiry = 1 * time.Hour

// Predefined JWT errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSigningKey  = errors.New("jwt signing key is not configured")
)

// Identity is the authenticated caller.
type Identity struct {
	SubjectID string
	Role      subject.Role
}

// HasRole reports whether the identity has one of roles.
func (i Identity) HasRole(roles ...subject.Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// JWTClaims represents the claims in our API access tokens.
type JWTClaims struct {
	jwt.RegisteredClaims

	SubjectID string `json:"sid"`
	Role      string `json:"role"`
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	expiry     time.Duration
	now        func() time.Time
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the secret key used to sign JWTs.
	SigningKey string

	// Issuer is the issuer claim for tokens (e.g., "https://api.geonotify.dev").
	Issuer string

	// Audience is the audience claim for tokens (e.g., "geonotify-api").
	Audience string

	// Expiry overrides AccessTokenExpiry.
	Expiry time.Duration

	// Now is used for issued-at and expiry. Default: time.Now
	Now func() time.Time
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = AccessTokenExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		expiry:     cfg.Expiry,
		now:        cfg.Now,
	}
}

// GenerateAccessToken creates a new access token for id.
func (s *JWTService) GenerateAccessToken(id Identity) (string, time.Time, error) {
	if len(s.signingKey) == 0 {
		return "", time.Time{}, ErrMissingSigningKey
	}
	if id.SubjectID == "" {
		return "", time.Time{}, fmt.Errorf("%w: missing subject id", ErrInvalidAccessToken)
	}
	if !id.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: unknown role %q", ErrInvalidAccessToken, id.Role)
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   id.SubjectID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		SubjectID: id.SubjectID,
		Role:      string(id.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns the caller.
// Tokens with an unknown role are rejected.
func (s *JWTService) ValidateAccessToken(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrAccessTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidAccessToken
	}

	id := Identity{SubjectID: claims.SubjectID, Role: subject.Role(claims.Role)}
	if id.SubjectID == "" {
		id.SubjectID = claims.Subject
	}
	if id.SubjectID == "" || !id.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: missing subject or role", ErrInvalidAccessToken)
	}
	return id, nil
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
