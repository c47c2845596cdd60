package jwtkit

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// RSAValidator accepts RS256 tokens verified against PublicKey.
type RSAValidator struct {
	PublicKey *rsa.PublicKey
}

// LoadPublicKey reads a PEM encoded RSA public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, errors.Join(errors.New("jwtkit: invalid public key"), err)
	}
	return key, nil
}

func (v *RSAValidator) Validate(tokenStr string) (jwt.MapClaims, error) {
	return parse(tokenStr, jwt.SigningMethodRS256, v.PublicKey)
}
