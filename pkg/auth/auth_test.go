package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("any-key-signature-is-not-checked"))
	require.NoError(t, err)
	return s
}

func TestDecodeIdentity(t *testing.T) {
	tests := []struct {
		name     string
		claims   jwt.MapClaims
		wantID   string
		wantName string
	}{
		{"sub claim", jwt.MapClaims{"sub": "u-1", "name": "Alice"}, "u-1", "Alice"},
		{"user_id fallback", jwt.MapClaims{"user_id": "u-2", "username": "bob"}, "u-2", "bob"},
		{"uid fallback", jwt.MapClaims{"uid": "u-3"}, "u-3", "u-3"},
		{"sub outranks uid", jwt.MapClaims{"uid": "u-x", "sub": "u-4"}, "u-4", "u-4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := DecodeIdentity(signToken(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id.UserID)
			assert.Equal(t, tt.wantName, id.Name)
		})
	}
}

func TestDecodeIdentityErrors(t *testing.T) {
	_, err := DecodeIdentity("garbage")
	assert.Error(t, err)

	_, err = DecodeIdentity(signToken(t, jwt.MapClaims{"role": "editor"}))
	assert.ErrorIs(t, err, ErrNoIdentity)
}
