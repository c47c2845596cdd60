package jwtkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway absorbs clock drift between the token issuer and the node.
const Leeway = 5 * time.Second

var ErrInvalidToken = errors.New("jwtkit: invalid token")

// parse verifies tokenStr signed with alg under key. exp is required; iat
// and nbf are checked when present.
func parse(tokenStr string, alg jwt.SigningMethod, key any) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(Leeway),
		jwt.WithStrictDecoding(),
	)

	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwtkit: %w", err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
