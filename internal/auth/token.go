package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const AccessTokenTTL = 12 * time.Hour

// Claims identifies a hiker by wallet address.
type Claims struct {
	HikerID string `json:"hiker_id"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for hikerID. Wallet sign-in lives in a
// separate service; this is used by it and by trailctl for local testing.
func SignToken(secret, hikerID string, ttl time.Duration) (string, error) {
	if hikerID == "" {
		return "", errors.New("hiker id required")
	}
	now := time.Now()
	claims := Claims{
		HikerID: hikerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   hikerID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
