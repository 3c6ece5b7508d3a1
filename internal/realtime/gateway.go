package realtime

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/api/metrics"
	"github.com/qbridge/chat-service/internal/auth"
	"github.com/qbridge/chat-service/internal/core/domain"
)

// Gateway admits socket clients. Only handshakes that authenticate reach the
// Router.
type Gateway struct {
	auth   *auth.Authenticator
	router *Router
	log    zerolog.Logger
}

// NewGateway returns a Gateway admitting identities verified by authenticator.
func NewGateway(authenticator *auth.Authenticator, router *Router, log zerolog.Logger) *Gateway {
	return &Gateway{auth: authenticator, router: router, log: log}
}

// Admit authenticates h and registers a connection for its identity.
func (g *Gateway) Admit(h auth.Handshake) (*Conn, error) {
	res, err := g.auth.Authenticate(h)
	if err != nil {
		metrics.ConnectionsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		g.log.Debug().Err(err).Msg("handshake rejected")
		return nil, err
	}
	conn := g.router.Connect(res.Identity)
	if conn.Closed() {
		metrics.ConnectionsRejectedTotal.WithLabelValues("shutting_down").Inc()
		return nil, ErrShuttingDown
	}
	return conn, nil
}

// Router returns the router connections are registered with.
func (g *Gateway) Router() *Router { return g.router }

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "missing_token"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired_token"
	default:
		return "invalid_token"
	}
}
