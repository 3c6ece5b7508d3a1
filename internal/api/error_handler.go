package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusRule maps a domain sentinel to a status. A rule with an empty message
// echoes err.Error(), which is only safe for errors written for clients.
type statusRule struct {
	target error
	code   int
	msg    string
}

var statusRules = []statusRule{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "not authenticated"},
	{domain.ErrTokenInvalid, http.StatusUnauthorized, "invalid or expired token"},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "invalid or expired token"},
	{domain.ErrConversationNotFound, http.StatusNotFound, "conversation not found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidBody, http.StatusUnprocessableEntity, ""},
}

// NewHTTPErrorHandler renders every error as {"error": "..."}. Echo errors
// keep their status, domain sentinels map through statusRules, and anything
// else is logged with its request id and answered with a bare 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := statusFor(err)
		if code == http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}
	for _, rule := range statusRules {
		if !errors.Is(err, rule.target) {
			continue
		}
		if rule.msg == "" {
			return rule.code, err.Error()
		}
		return rule.code, rule.msg
	}
	return http.StatusInternalServerError, "internal server error"
}
