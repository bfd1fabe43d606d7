package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuerName = "guardhub"

// ErrInvalidToken indicates a bearer token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// tokenClaims are the JWT claims carried by API bearer tokens. Role data
// here is untrusted input like any other session field; the authz resolver
// normalizes and bounds it.
type tokenClaims struct {
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Role     string   `json:"role,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	SchoolID string   `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens for API clients.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer from a shared secret.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 chars")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be greater than zero")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for the given session user.
func (ti *TokenIssuer) Issue(u *SessionUser) (string, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := time.Now().UTC()
	claims := tokenClaims{
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Roles:    u.Roles,
		SchoolID: u.SchoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuerName,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token signature and claims and returns the embedded
// session user. Any failure yields ErrInvalidToken without detail.
func (ti *TokenIssuer) Parse(token string) (*SessionUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return ti.secret, nil
	}, jwt.WithIssuer(tokenIssuerName), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}

	return &SessionUser{
		ID:       claims.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		Role:     claims.Role,
		Roles:    claims.Roles,
		SchoolID: claims.SchoolID,
	}, nil
}
