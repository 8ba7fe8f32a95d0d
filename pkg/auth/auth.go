// Package auth carries the two values the engine consumes from the
// authentication collaborator: a project id and a bearer token. The local
// user identity is read out of the token's claims without verifying the
// signature — the server is the one that actually checks it.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoIdentity = errors.New("token carries no user identifier")

// Credentials opens one sync session.
type Credentials struct {
	ProjectID string
	Token     string
}

// Identity is the user identity decoded from a token.
type Identity struct {
	UserID string
	Name   string
}

// DecodeIdentity extracts the user id and display name from the token's
// claim payload. Claims are read unverified; the fallback chains match what
// the authority itself accepts: sub, user_id, id, uid for the id and name,
// username for the display name.
func DecodeIdentity(token string) (Identity, error) {
	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Identity{}, fmt.Errorf("decoding token claims: %w", err)
	}

	id := firstString(claims, "sub", "user_id", "id", "uid")
	if id == "" {
		return Identity{}, ErrNoIdentity
	}
	name := firstString(claims, "name", "username")
	if name == "" {
		name = id
	}
	return Identity{UserID: id, Name: name}, nil
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
