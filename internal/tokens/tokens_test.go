package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	got, err := ExpiryFromJWT(signed)
	require.NoError(t, err)
	require.True(t, got.Equal(exp), "got %v want %v", got, exp)
}

func TestExpiryFromJWTMissingExp(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ExpiryFromJWT(signed)
	require.Error(t, err)
}

func TestExpiryFromJWTGarbage(t *testing.T) {
	_, err := ExpiryFromJWT("not-a-token")
	require.Error(t, err)
}

func TestPairExpired(t *testing.T) {
	now := time.Now()
	p := TokenPair{ExpiresAt: now.Add(time.Minute)}
	require.False(t, p.Expired(now))
	require.True(t, p.Expired(now.Add(time.Minute)))
	require.True(t, TokenPair{}.Expired(now), "zero expiry counts as expired")
}
