package jwtkit

import "github.com/golang-jwt/jwt/v5"

// HMAC256Validator accepts HS256 tokens signed with Secret.
type HMAC256Validator struct {
	Secret []byte
}

func (tv *HMAC256Validator) Validate(tokenStr string) (jwt.MapClaims, error) {
	return parse(tokenStr, jwt.SigningMethodHS256, tv.Secret)
}
