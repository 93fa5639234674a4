package backend

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is what the client reads out of the login token.
type TokenClaims struct {
	UserID string
	Email  string
	Admin  bool
}

// ParseToken decodes the login token payload without checking the
// signature. The client trusts it the same way it trusts local storage; the
// backend verifies the cookie on every call.
func ParseToken(token string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("parse token: %w", err)
	}

	id := claimString(claims["id"])
	if id == "" {
		return TokenClaims{}, errors.New("parse token: missing user id")
	}
	return TokenClaims{
		UserID: id,
		Email:  claimString(claims["email"]),
		Admin:  claimBool(claims["access_level"]),
	}, nil
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func claimBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	case float64:
		return t == 1
	default:
		return false
	}
}
