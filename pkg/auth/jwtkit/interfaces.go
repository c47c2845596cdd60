// Package jwtkit signs and validates the bearer tokens presented on the
// WebSocket handshake, and reads token expiry on the client side.
package jwtkit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Validator interface {
	Validate(tokenStr string) (jwt.MapClaims, error)
}

// Signer mints tokens. A non-zero ttl sets exp relative to now; iat is
// always set.
type Signer interface {
	CreateToken(claims jwt.MapClaims, ttl time.Duration) (string, error)
}
