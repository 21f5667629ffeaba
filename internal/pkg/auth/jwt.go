// Package auth разбирает access токены, выпущенные сервисом аутентификации.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/droszt-service/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims - полезная нагрузка access токена
type Claims struct {
	UID  string      `json:"uid"`
	Role domain.Role `json:"role"`
	// Device - идентификатор установки приложения, если сервис аутентификации его выдаёт
	Device string `json:"did,omitempty"`
	jwt.RegisteredClaims
}

// Actor - пользователь из claims
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{UID: c.UID, Admin: c.Role == domain.RoleAdmin, Device: c.Device}
}

// IssuedAt - время выпуска токена, ноль если не указано
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// Parse проверяет подпись HS256 и срок действия
func Parse(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Sign выпускает токен; используется в тестах и в dev окружении
func Sign(secret string, actor domain.Actor, ttl time.Duration) (string, error) {
	role := domain.RoleUser
	if actor.Admin {
		role = domain.RoleAdmin
	}
	now := time.Now().UTC()
	claims := Claims{
		UID:    actor.UID,
		Role:   role,
		Device: actor.Device,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
