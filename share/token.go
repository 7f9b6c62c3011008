package share

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Mode string

const (
	ModeEdit Mode = "edit"
	ModeView Mode = "view"
)

var ErrNoSecret = errors.New("share secret is not configured")

// Claims grant access to one scene.
type Claims struct {
	jwt.RegisteredClaims
	SceneID string `json:"sid"`
	Mode    Mode   `json:"mode"`
}

// ViewOnly reports whether the token only allows reading.
func (c *Claims) ViewOnly() bool {
	return c.Mode != ModeEdit
}

// Issue signs a token for sceneID. A zero ttl issues a token that never expires.
func Issue(secret []byte, sceneID string, mode Mode, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	if mode != ModeEdit && mode != ModeView {
		return "", fmt.Errorf("unknown share mode %q", mode)
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sceneID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		SceneID: sceneID,
		Mode:    mode,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func Parse(secret []byte, tokenString string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
