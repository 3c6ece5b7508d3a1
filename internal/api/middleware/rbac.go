package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// RBAC admits requests whose authenticated identity carries one of roles.
// It must be mounted after Auth; a request without an identity is treated as
// unauthenticated rather than forbidden.
func RBAC(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get(KeyIdentity).(domain.Identity)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if !lo.Contains(roles, id.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "role not permitted for chat")
			}
			return next(c)
		}
	}
}
