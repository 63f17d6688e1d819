package stubserver

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the JWT payload for stub-issued bearer tokens.
type claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// issueToken signs an HS256 access token for the operator.
func issueToken(username, role, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// parseToken validates a bearer token and returns its claims.
func parseToken(tokenStr, key, issuer string) (claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return claims{}, err
	}
	parsedClaims, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return claims{}, errors.New("invalid token")
	}
	if issuer != "" && parsedClaims.Issuer != issuer {
		return claims{}, errors.New("issuer mismatch")
	}
	return *parsedClaims, nil
}
