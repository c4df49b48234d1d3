package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// Claims defines the session cookie claims. The JWT ID carries the session id.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer issues and validates the signed session cookie value.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer for secret. An empty secret yields a random key,
// so cookies do not survive a restart.
func NewSigner(secret string) (*Signer, error) {
	if secret != "" {
		return &Signer{key: []byte(secret)}, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Sign creates a token for sessionID that expires at expiresAt.
func (s *Signer) Sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Parse validates a token string and returns the session id it carries.
func (s *Signer) Parse(tokenStr string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ID == "" {
		return "", errInvalidToken
	}
	return claims.ID, nil
}
