// Package auth issues and validates the bearer tokens that guard write
// endpoints.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleWriter may record snapshots.
const RoleWriter = "writer"

const issuer = "schemagate"

// Claims represents the JWT claims of an API token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService provides stateless JWT token operations.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret     []byte
	expiration time.Duration
	ephemeral  bool
}

// NewTokenService creates a new JWT token service.
// If secret is empty, a random 32-byte secret is generated, so tokens
// minted elsewhere are never accepted.
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	s := &TokenService{secret: []byte(secret), expiration: expiration}
	if secret == "" {
		s.secret = make([]byte, 32)
		rand.Read(s.secret)
		s.ephemeral = true
	}
	if s.expiration == 0 {
		s.expiration = 24 * time.Hour
	}
	return s
}

// Ephemeral reports whether the secret was generated for this process.
func (s *TokenService) Ephemeral() bool {
	return s.ephemeral
}

// GenerateToken creates a new JWT token for subject with role.
func (s *TokenService) GenerateToken(subject, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// GenerateSecret generates a random secret suitable for JWT signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
