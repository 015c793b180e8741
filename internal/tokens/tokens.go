package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the credential material for one session: a short-lived bearer
// access token plus the refresh token used to mint its successor.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the access token is past its expiry at t.
func (p TokenPair) Expired(t time.Time) bool {
	return p.ExpiresAt.IsZero() || !t.Before(p.ExpiresAt)
}

// ExpiryFromJWT extracts the exp claim from a JWT access token without
// verifying the signature. Used as a fallback when the server response
// omits expiresIn; the token is otherwise treated as opaque.
func ExpiryFromJWT(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	return exp.Time, nil
}
