package jwt

import (
	"fmt"
	"time"

	errs "github.com/chatterhq/chatter/errors"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

// ValidateAndGetClaims checks the signature and expiry of an access token
// and returns its claims.
func ValidateAndGetClaims(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errs.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errs.Unauthorized("invalid token claims")
	}
	return claims, nil
}

// UserIDFromClaims extracts the subject user id from validated claims.
func UserIDFromClaims(claims jwt.MapClaims) (uuid.UUID, error) {
	raw, ok := claims["id"].(string)
	if !ok {
		return uuid.Nil, errs.Unauthorized("invalid user id claim")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.Unauthorized("invalid user id claim")
	}
	return userID, nil
}

// GenerateToken mints an access token for a user id. Token issuance flows
// live with the identity service; this exists for tooling and tests.
func GenerateToken(userID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  userID.String(),
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
