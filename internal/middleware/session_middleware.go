package middleware

import (
	"context"
	"net/http"
	"strings"

	"copymint/internal/config"
	"copymint/internal/shopify"
	"copymint/internal/utils"
)

// ContextKey is the type for request-context values set by middleware.
type ContextKey string

// ShopKey holds the authenticated shop domain.
const ShopKey ContextKey = "shop"

// SessionMiddleware authenticates embedded-app requests via the session token
// in the Authorization header and stores the shop domain in the request
// context. Requests without a valid token are rejected with 401.
func SessionMiddleware(cfg config.ShopifyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing session token")
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			shop, err := shopify.ParseSessionToken(tokenString, cfg)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired session token")
				return
			}

			ctx := context.WithValue(r.Context(), ShopKey, shop)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetShop retrieves the authenticated shop domain from the request context.
func GetShop(ctx context.Context) (string, bool) {
	shop, ok := ctx.Value(ShopKey).(string)
	return shop, ok
}
