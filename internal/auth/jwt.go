// Package auth — jwt.go выпускает и проверяет токены доступа (HS256).
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"levelupsolo.app/server/internal/common"
)

const issuer = "levelupsolo"

// Claims — полезная нагрузка токена.
type Claims struct {
	UserID int64 `json:"uid"`
	Demo   bool  `json:"demo,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer подписывает и проверяет токены общим секретом.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт издателя токенов.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue выпускает токен для пользователя. Демо-токены живут столько же,
// сколько обычные, но их данные могут быть удалены раньше.
func (t *TokenIssuer) Issue(userID int64, demo bool) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		UserID: userID,
		Demo:   demo,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, expires, nil
}

// Parse проверяет подпись, срок действия и издателя.
// Любая ошибка сводится к common.ErrUnauthorized.
func (t *TokenIssuer) Parse(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}
	if claims.UserID == 0 {
		return Claims{}, fmt.Errorf("%w: пустой uid", common.ErrUnauthorized)
	}
	if claims.Demo != (claims.UserID < 0) {
		return Claims{}, fmt.Errorf("%w: demo и uid не согласованы", common.ErrUnauthorized)
	}
	return claims, nil
}

// IsExpired сообщает, что токен отклонён из-за истёкшего срока.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
