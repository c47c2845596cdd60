package jwtkit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParseExpiry reads the exp claim without verifying the signature. Clients
// use it to refresh a token before the server starts rejecting it. A token
// without exp yields the zero time.
func ParseExpiry(tokenStr string) (time.Time, error) {
	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, fmt.Errorf("jwtkit: parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("jwtkit: read exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
