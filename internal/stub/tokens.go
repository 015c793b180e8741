package stub

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
)

// MintAccessToken signs an HS256 access token carrying the claims the
// netpanel portals read client-side.
func MintAccessToken(secret string, u *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":         u.ID,
		"email":       u.Email,
		"name":        u.Name,
		"role":        u.Role,
		"permissions": u.Permissions,
		"tenantId":    u.TenantID,
		"mfaEnabled":  u.MFAEnabled,
		"iat":         now.Unix(),
		"exp":         now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(secret))
}

// ParseAccessToken verifies an HS256 token and returns its claims.
func ParseAccessToken(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
