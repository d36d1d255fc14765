package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// decodeToken reads identity claims without verifying the signature; the
// client never holds the signing key and the server re-validates every call.
// Expiry is not checked here either.
func decodeToken(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("decode credential: %w", err)
	}

	sub, _ := claims["sub"].(string)
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return Identity{}, errors.New("decode credential: missing sub claim")
	}

	id := Identity{Email: sub}
	for _, k := range []string{"fullName", "name"} {
		if v, ok := claims[k].(string); ok && v != "" {
			id.FullName = v
			break
		}
	}
	return id, nil
}
