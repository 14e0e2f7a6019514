// Package jwttest выпускает токены для тестов обработчиков и middleware.
package jwttest

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/jwt"
)

// Sign подписывает HS256-токен, выпущенный в issuedAt и действующий ttl.
func Sign(t testing.TB, secret string, issuedAt time.Time, ttl time.Duration, username, role, userUID string) string {
	t.Helper()
	claims := jwt.CustomClaims{
		Username: username,
		Role:     role,
		UserUID:  userUID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userUID,
			IssuedAt:  gojwt.NewNumericDate(issuedAt),
			ExpiresAt: gojwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("jwttest.Sign: %v", err)
	}
	return token
}

// Token действующий час токен.
func Token(t testing.TB, secret, username, role, userUID string) string {
	t.Helper()
	return Sign(t, secret, time.Now(), time.Hour, username, role, userUID)
}
