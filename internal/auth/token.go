// Package auth issues and checks operator bearer tokens.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// Tokens signs HS256 JWTs carrying the operator's email. Tokens minted by a hosted auth
// provider with the same secret and an "email" claim verify as well.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(email string) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret not configured")
	}
	now := t.now()
	exp := now.Add(t.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": models.NormalizeEmail(email),
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify returns the lower-cased email of a valid, unexpired token.
func (t *Tokens) Verify(tokenString string) (string, error) {
	if len(t.secret) == 0 || tokenString == "" {
		return "", apperr.ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	email, _ := claims["email"].(string)
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: token without email", apperr.ErrUnauthorized)
	}
	return email, nil
}

// AllowList is a set of operator emails. An empty list admits nobody.
type AllowList map[string]struct{}

func ParseAllowList(csv string) AllowList {
	list := AllowList{}
	for _, part := range strings.Split(csv, ",") {
		if email := models.NormalizeEmail(part); email != "" {
			list[email] = struct{}{}
		}
	}
	return list
}

func (l AllowList) Allows(email string) bool {
	_, ok := l[models.NormalizeEmail(email)]
	return ok
}
