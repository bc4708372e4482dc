package shopify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"copymint/internal/config"
)

var (
	// ErrInvalidSessionToken covers malformed, mis-signed or expired tokens.
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// SessionClaims are the claims carried by an embedded-app session token.
// Dest holds the shop origin, e.g. "https://store.myshopify.com".
type SessionClaims struct {
	Dest string `json:"dest"`
	jwt.RegisteredClaims
}

// ParseSessionToken verifies a session token signed with the app's API secret
// and returns the shop domain it was issued for. When the configuration
// carries an API key, the token audience must match it.
func ParseSessionToken(tokenString string, cfg config.ShopifyConfig) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.APISecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidSessionToken
	}

	if cfg.APIKey != "" && !claims.VerifyAudience(cfg.APIKey, true) {
		return "", fmt.Errorf("%w: audience mismatch", ErrInvalidSessionToken)
	}

	shop := shopFromDest(claims.Dest)
	if shop == "" {
		return "", fmt.Errorf("%w: missing dest claim", ErrInvalidSessionToken)
	}
	return shop, nil
}

// shopFromDest strips the scheme and any path from the dest claim.
func shopFromDest(dest string) string {
	shop := strings.TrimPrefix(dest, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	if i := strings.IndexByte(shop, '/'); i >= 0 {
		shop = shop[:i]
	}
	return strings.TrimSpace(shop)
}
