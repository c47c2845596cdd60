package jwtkit

import (
	"fmt"
	"strings"

	"github.com/fgrzl/claims"
	"github.com/golang-jwt/jwt/v5"
)

func NewClaimsPrincipal(raw jwt.MapClaims) claims.Principal {
	claimsMap := make(map[string]claims.Claim, len(raw))

	for k, v := range raw {
		switch val := v.(type) {
		case string:
			claimsMap[k] = claims.NewClaim(k, val)
		case float64:
			claimsMap[k] = claims.NewClaim(k, fmt.Sprintf("%v", val))
		case []any:
			strs := make([]string, 0, len(val))
			for _, item := range val {
				strs = append(strs, fmt.Sprint(item))
			}
			claimsMap[k] = claims.NewClaim(k, strings.Join(strs, ","))
		case nil:
			// skip
		default:
			claimsMap[k] = claims.NewClaim(k, fmt.Sprint(val))
		}
	}

	return claims.NewClaimsPrincipal(claimsMap)
}

// Authenticate adapts v to the router's token validation hook.
func Authenticate(v Validator) func(string) (claims.Principal, error) {
	return func(token string) (claims.Principal, error) {
		raw, err := v.Validate(token)
		if err != nil {
			return nil, err
		}
		return NewClaimsPrincipal(raw), nil
	}
}
