package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qbridge/chat-service/internal/api/middleware"
	"github.com/qbridge/chat-service/internal/core/domain"
)

// ctxIdentity returns the identity injected by the Auth middleware. A missing
// or subject-less identity means the route was mounted without Auth.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := c.Get(middleware.KeyIdentity).(domain.Identity)
	if !ok || id.SubjectID == "" {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}
