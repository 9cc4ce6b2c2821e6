package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// CustomerClaims identify the shopper behind a storefront API call.
type CustomerClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type JWTUtil struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func New(signingKey string, ttl time.Duration) *JWTUtil {
	return &JWTUtil{signingKey: []byte(signingKey), ttl: ttl, now: time.Now}
}

// GenerateToken issues an HS256 token whose subject is the user id.
func (j *JWTUtil) GenerateToken(userID, email, role string) (string, error) {
	if len(j.signingKey) == 0 {
		return "", errors.New("jwt signing key not configured")
	}
	now := j.now()
	claims := CustomerClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.signingKey)
}

func (j *JWTUtil) ValidateToken(tokenString string) (*CustomerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.signingKey, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomerClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
