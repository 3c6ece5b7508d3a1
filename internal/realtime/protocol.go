package realtime

import (
	"encoding/json"
	"errors"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// Client to server events.
const (
	EventJoin = "conversation:join"
	EventSend = "message:send"
)

// Server to client events.
const (
	EventJoined     = "conversation:joined"
	EventMessageNew = "message:new"
	EventError      = "error"
)

// Error codes carried by an error event.
const (
	CodeNotFound        = "not_found"
	CodeForbidden       = "forbidden"
	CodeInvalidBody     = "invalid_body"
	CodeBadRequest      = "bad_request"
	CodeUnauthenticated = "unauthenticated"
	CodeInternal        = "internal"
)

// Frame is the wire envelope for every socket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame queued on a connection.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type JoinRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type SendRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Body           string `json:"body"`
}

type JoinedPayload struct {
	ConversationID string `json:"conversationId"`
}

type MessagePayload struct {
	Message *domain.Message `json:"message"`
}

// ErrorPayload is sent only to the connection whose request failed.
type ErrorPayload struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversationId,omitempty"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

func messageEvent(m *domain.Message) Event {
	return Event{Name: EventMessageNew, Data: MessagePayload{Message: m}}
}

func joinedEvent(conversationID string) Event {
	return Event{Name: EventJoined, Data: JoinedPayload{ConversationID: conversationID}}
}

// errorCode maps an operation error to its wire code and a client-safe
// message.
func errorCode(err error) (code, msg string) {
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		return CodeNotFound, "conversation not found"
	case errors.Is(err, domain.ErrForbidden):
		return CodeForbidden, "not a member of this conversation"
	case errors.Is(err, domain.ErrInvalidBody):
		return CodeInvalidBody, domain.ErrInvalidBody.Error()
	case errors.Is(err, domain.ErrTokenExpired):
		return CodeUnauthenticated, "session expired"
	case errors.Is(err, errBadRequest):
		return CodeBadRequest, err.Error()
	}
	return CodeInternal, "internal error"
}

func errorEvent(event, conversationID string, err error) Event {
	code, msg := errorCode(err)
	return Event{Name: EventError, Data: ErrorPayload{
		Event:          event,
		ConversationID: conversationID,
		Code:           code,
		Message:        msg,
	}}
}
