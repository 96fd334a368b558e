// Package auth issues and checks the HS256 bearer tokens the API uses.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

type Claims struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	JobTitleID string `json:"jobTitleId,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the subject a token is issued for.
type Identity struct {
	UserID     string
	Email      string
	Role       string
	JobTitleID string
}

func GenerateToken(secret string, id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     id.UserID,
		Email:      id.Email,
		Role:       id.Role,
		JobTitleID: id.JobTitleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// Roles lists the stable role identifiers the claims grant: the role name,
// the job title ID when set, and "user:<id>".
func (c *Claims) Roles() []string {
	roles := make([]string, 0, 3)
	if c.Role != "" {
		roles = append(roles, c.Role)
	}
	if c.JobTitleID != "" {
		roles = append(roles, c.JobTitleID)
	}
	return append(roles, "user:"+c.UserID)
}
