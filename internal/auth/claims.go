package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Access tokens default to 15 minutes when the configured TTL is
// missing or nonsense; refresh tokens carry 256 bits of entropy.
const (
	defaultAccessTTLMinutes = 15
	refreshTokenBytes       = 32
)

// CustomClaims is the payload of an Amber Hub access token: the
// registered JWT claims plus the holder's role and a session ID that
// ties the token to its refresh-token family.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	SessionID string `json:"sid"`
}

// GenerateAccessToken signs a short-lived HS256 token for the user.
// Requests verify it by signature alone, so revocation happens at
// refresh time rather than per request.
func GenerateAccessToken(user *User, secret string, ttlMinutes int) (string, error) {
	if ttlMinutes <= 0 {
		ttlMinutes = defaultAccessTTLMinutes
	}
	ttl := time.Duration(ttlMinutes) * time.Minute

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, newAccessClaims(user, ttl)).
		SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

func newAccessClaims(user *User, ttl time.Duration) CustomClaims {
	now := time.Now()
	return CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:      user.Role,
		SessionID: uuid.NewString(),
	}
}

// GenerateRefreshToken returns a fresh random refresh token as hex.
// The raw value goes to the client; the database only ever sees its
// SHA-256 (see HashToken).
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ParseToken verifies an access token and returns its claims. Every
// failure mode (bad signature, wrong algorithm, expiry, missing
// fields) wraps ErrTokenInvalid so callers treat them uniformly.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	keyFn := func(_ *jwt.Token) (any, error) { return []byte(secret), nil }

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, keyFn,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	switch {
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	case claims.Role == "":
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	return claims, nil
}
