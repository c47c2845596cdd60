package jwtkit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type HMAC256Signer struct {
	Secret []byte
}

func (tm *HMAC256Signer) CreateToken(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stamp(claims, ttl))
	return token.SignedString(tm.Secret)
}

// stamp copies claims and adds iat and, for a non-zero ttl, exp.
func stamp(claims jwt.MapClaims, ttl time.Duration) jwt.MapClaims {
	now := time.Now()
	out := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		out[k] = v
	}
	out["iat"] = now.Unix()
	if ttl != 0 {
		out["exp"] = now.Add(ttl).Unix()
	}
	return out
}
