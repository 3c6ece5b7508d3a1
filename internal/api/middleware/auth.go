package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qbridge/chat-service/internal/auth"
	"github.com/qbridge/chat-service/internal/core/domain"
)

// KeyIdentity is the context key Auth stores the verified domain.Identity under.
const KeyIdentity = "identity"

// Auth verifies the auth cookie, or a bearer token when no cookie is sent,
// and injects the identity into the context.
func Auth(authenticator *auth.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res, err := authenticator.Authenticate(auth.BearerHandshake(c.Request()))
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(KeyIdentity, res.Identity)

			return next(c)
		}
	}
}
