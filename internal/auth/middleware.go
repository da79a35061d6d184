package auth

import (
	"errors"
	"net/http"
	"strings"

	"storefront-notify/internal/domain"

	"github.com/labstack/echo/v4"
)

const claimsKey = "auth.claims"

// BearerToken extracts the token from "Authorization: Bearer ..." or the
// "token" query parameter. Browsers cannot set headers on websocket
// handshakes, hence the query fallback.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// StatusCode maps auth errors to HTTP statuses.
func StatusCode(err error) int {
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// RequireRoles is echo middleware that only lets the given roles through.
func RequireRoles(tokens *TokenService, roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := tokens.Authorize(BearerToken(c.Request()), roles...)
			if err != nil {
				return c.JSON(StatusCode(err), map[string]string{"error": err.Error()})
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by RequireRoles.
func ClaimsFrom(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(claimsKey).(*Claims)
	return claims, ok
}
