// Package auth provides stateless identity verification using JWT.
// Designed for horizontal scaling - no shared state between instances.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/texlify/texlify/ports"
)

// Claims represents the JWT claims for user sessions.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTProvider verifies bearer tokens issued by the session service.
// Thread-safe and suitable for concurrent use. Tokens that fail
// verification resolve to ErrNotFound so callers fall back to
// anonymous, never to a hard failure.
type JWTProvider struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewJWTProvider creates a new JWT identity provider.
// If secret is empty, a random 32-byte secret is generated.
func NewJWTProvider(secret string, expiration time.Duration) *JWTProvider {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}

	if expiration == 0 {
		expiration = 24 * time.Hour
	}

	return &JWTProvider{
		secret:     secretBytes,
		issuer:     "texlify",
		expiration: expiration,
	}
}

// Identify resolves a bearer token to a user ID.
func (p *JWTProvider) Identify(ctx context.Context, token string) (string, error) {
	claims, err := p.validate(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrNotFound, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: token has no subject", ports.ErrNotFound)
	}
	return claims.UserID, nil
}

// GenerateToken creates a new session token for the given user.
func (p *JWTProvider) GenerateToken(userID, email string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.expiration)

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (p *JWTProvider) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
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

// Static resolves tokens from a fixed map. For tests and local setups.
type Static struct {
	Tokens map[string]string // token -> user ID
}

// Identify resolves a token against the static map.
func (s *Static) Identify(ctx context.Context, token string) (string, error) {
	if userID, ok := s.Tokens[token]; ok {
		return userID, nil
	}
	return "", ports.ErrNotFound
}

var (
	_ ports.IdentityProvider = (*JWTProvider)(nil)
	_ ports.IdentityProvider = (*Static)(nil)
)
