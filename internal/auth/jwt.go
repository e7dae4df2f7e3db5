package auth

import (
	"errors"
	"fmt"
	"time"

	"drive-api/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "drive-api"

var ErrUnauthorized = errors.New("unauthorized")

type AppClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Guard issues and verifies access tokens with a secret taken from config.
type Guard struct {
	secret    []byte
	accessTTL time.Duration
}

func NewGuard(secret string, accessTTL time.Duration) *Guard {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &Guard{secret: []byte(secret), accessTTL: accessTTL}
}

func (g *Guard) AccessTTL() time.Duration {
	return g.accessTTL
}

func (g *Guard) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := &AppClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// Verify checks the signature and expiry of tokenString. Every failure wraps
// ErrUnauthorized together with the underlying jwt error.
func (g *Guard) Verify(tokenString string) (*AppClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnauthorized, jwt.ErrTokenInvalidClaims)
}
