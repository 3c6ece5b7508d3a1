package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/api/metrics"
)

const (
	defaultPingInterval  = 30 * time.Second
	defaultMaxFrameBytes = 16 << 10
	defaultWriteWait     = 10 * time.Second
)

var errBadRequest = errors.New("bad request")

// SessionConfig tunes the socket keepalive and limits.
type SessionConfig struct {
	PingInterval  time.Duration
	MaxFrameBytes int64
	WriteWait     time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = defaultMaxFrameBytes
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	return c
}

// NewFrameValidator returns a validator reporting fields by their JSON name.
func NewFrameValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Session drives one websocket for an admitted Conn. The read pump decodes
// client frames and calls the Router; the write pump is the only writer to
// the socket and drains the connection's outbound queue.
type Session struct {
	ws       *websocket.Conn
	conn     *Conn
	router   *Router
	validate *validator.Validate
	cfg      SessionConfig
	log      zerolog.Logger
}

// NewSession binds ws to conn. A nil validate gets NewFrameValidator.
func NewSession(ws *websocket.Conn, conn *Conn, router *Router, validate *validator.Validate, cfg SessionConfig, log zerolog.Logger) *Session {
	if validate == nil {
		validate = NewFrameValidator()
	}
	return &Session{
		ws:       ws,
		conn:     conn,
		router:   router,
		validate: validate,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("conn_id", conn.ID()).Str("subject", conn.Identity().SubjectID).Logger(),
	}
}

// Run blocks until the client goes away, the connection is disconnected or
// ctx is cancelled. The Conn is always disconnected on return.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if exp := s.conn.Identity().ExpiresAt; !exp.IsZero() {
		timer := time.AfterFunc(time.Until(exp), func() {
			s.closeWith(websocket.ClosePolicyViolation, "session expired")
		})
		defer timer.Stop()
	}

	go func() {
		<-ctx.Done()
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	s.readPump(ctx)
	s.router.Disconnect(s.conn)
	<-writerDone
	_ = s.ws.Close()
}

func (s *Session) readPump(ctx context.Context) {
	pongWait := s.cfg.PingInterval * 2
	s.ws.SetReadLimit(s.cfg.MaxFrameBytes)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("socket read failed")
			}
			return
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))

		s.handle(ctx, data)
		if s.conn.Closed() {
			return
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		// Done wins over queued events; select alone picks at random.
		if s.disconnected() {
			return
		}

		select {
		case ev := <-s.conn.Outbound():
			if s.disconnected() {
				return
			}
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.ws.WriteJSON(ev); err != nil {
				s.log.Debug().Err(err).Msg("socket write failed")
				_ = s.ws.Close()
				return
			}
		case <-ticker.C:
			if err := s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				_ = s.ws.Close()
				return
			}
		case <-s.conn.Done():
			s.closeWith(websocket.CloseNormalClosure, "")
			return
		}
	}
}

// disconnected closes the socket and reports true once the Conn is done.
func (s *Session) disconnected() bool {
	select {
	case <-s.conn.Done():
		s.closeWith(websocket.CloseNormalClosure, "")
		return true
	default:
		return false
	}
}

// closeWith sends a close frame and closes the socket, which ends both pumps.
func (s *Session) closeWith(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
	_ = s.ws.Close()
}

func (s *Session) handle(ctx context.Context, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.fail("", "", "", fmt.Errorf("%w: malformed frame", errBadRequest))
		return
	}

	switch f.Event {
	case EventJoin:
		var req JoinRequest
		if err := s.decode(f.Data, &req); err != nil {
			s.fail(f.Event, "", "join", err)
			return
		}
		if err := s.router.Join(ctx, s.conn, req.ConversationID); err != nil {
			s.fail(f.Event, req.ConversationID, "join", err)
			return
		}
		s.router.reply(s.conn, joinedEvent(req.ConversationID))

	case EventSend:
		var req SendRequest
		if err := s.decode(f.Data, &req); err != nil {
			s.fail(f.Event, "", "send", err)
			return
		}
		if _, err := s.router.Send(ctx, s.conn, req.ConversationID, req.Body); err != nil {
			s.fail(f.Event, req.ConversationID, "send", err)
		}

	default:
		s.fail(f.Event, "", "", fmt.Errorf("%w: unknown event %q", errBadRequest, f.Event))
	}
}

func (s *Session) decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", errBadRequest)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed data", errBadRequest)
	}
	if err := s.validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fmt.Errorf("%w: %s is %s", errBadRequest, ve[0].Field(), ve[0].Tag())
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// fail reports err to this connection only.
func (s *Session) fail(event, conversationID, op string, err error) {
	if errors.Is(err, ErrConnectionClosed) {
		return
	}

	code, _ := errorCode(err)
	if op != "" {
		metrics.OperationErrorsTotal.WithLabelValues(op, code).Inc()
	}
	if code == CodeInternal {
		s.log.Error().Err(err).
			Str("event", event).
			Str("conversation_id", conversationID).
			Msg("socket operation failed")
	}
	s.router.reply(s.conn, errorEvent(event, conversationID, err))
}
