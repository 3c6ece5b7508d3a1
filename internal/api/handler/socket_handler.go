package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/auth"
	"github.com/qbridge/chat-service/internal/realtime"
)

// SocketHandler upgrades authenticated clients to a websocket session.
type SocketHandler struct {
	gateway  *realtime.Gateway
	upgrader websocket.Upgrader
	validate *validator.Validate
	cfg      realtime.SessionConfig
	log      zerolog.Logger
}

// NewSocketHandler builds a SocketHandler accepting browser origins listed in
// allowedOrigins. Requests without an Origin header (non-browser clients) are
// accepted.
func NewSocketHandler(gateway *realtime.Gateway, allowedOrigins []string, cfg realtime.SessionConfig, log zerolog.Logger) *SocketHandler {
	return &SocketHandler{
		gateway:  gateway,
		upgrader: createUpgrader(allowedOrigins),
		validate: realtime.NewFrameValidator(),
		cfg:      cfg,
		log:      log,
	}
}

func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedMap[origin]
		},
	}
}

// Serve handles GET /ws. The handshake is authenticated before the upgrade,
// so rejected clients get a plain 401 and never reach the router.
func (h *SocketHandler) Serve(c echo.Context) error {
	conn, err := h.gateway.Admit(auth.HandshakeFromRequest(c.Request()))
	if errors.Is(err, realtime.ErrShuttingDown) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an error response.
		h.gateway.Router().Disconnect(conn)
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	h.log.Info().
		Str("conn_id", conn.ID()).
		Str("subject", conn.Identity().SubjectID).
		Msg("socket connected")

	realtime.NewSession(ws, conn, h.gateway.Router(), h.validate, h.cfg, h.log).Run(c.Request().Context())

	h.log.Info().Str("conn_id", conn.ID()).Msg("socket disconnected")
	return nil
}
