package jwtkit

import (
	"crypto/rsa"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RSASigner mints RS256 tokens, typically for tests and tooling that stand
// in for the identity provider.
type RSASigner struct {
	PrivateKey *rsa.PrivateKey
}

// LoadPrivateKey reads a PEM encoded RSA private key.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, errors.Join(errors.New("jwtkit: invalid private key"), err)
	}
	return key, nil
}

func (s *RSASigner) CreateToken(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, stamp(claims, ttl))
	return token.SignedString(s.PrivateKey)
}
