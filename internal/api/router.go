package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/api/handler"
	"github.com/qbridge/chat-service/internal/api/middleware"
	"github.com/qbridge/chat-service/internal/auth"
	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/core/ports"
	"github.com/qbridge/chat-service/internal/realtime"
)

// Dependencies are the wired services the HTTP surface exposes.
type Dependencies struct {
	Authenticator  *auth.Authenticator
	Membership     handler.Membership
	Messages       ports.MessageStore
	Gateway        *realtime.Gateway
	AllowedOrigins []string
	Session        realtime.SessionConfig
	Checks         []handler.Check
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// --- Realtime ---
	socketHandler := handler.NewSocketHandler(deps.Gateway, deps.AllowedOrigins, deps.Session, log)
	e.GET("/ws", socketHandler.Serve)

	// --- Chat routes ---
	chatHandler := handler.NewChatHandler(deps.Membership, deps.Messages)
	chat := e.Group("/chat", middleware.Auth(deps.Authenticator), middleware.RBAC(domain.StaffRoles...))
	chat.GET("/conversations", chatHandler.ListConversations)
	chat.GET("/conversations/:id/messages", chatHandler.RecentMessages)

	return e
}
