package auth

import (
	"errors"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is what the API needs from an access token: who is calling.
type Claims struct {
	UserID    int64
	ExpiresAt time.Time
}

type Authenticator interface {
	GenerateToken(userID int64, ttl time.Duration) (string, error)
	ValidateAccessToken(token string) (*Claims, error)
}
