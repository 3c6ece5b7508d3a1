package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/core/ports"
)

// Membership is what the chat routes need from the membership authority.
type Membership interface {
	ports.MembershipAuthority
	ports.ConversationLister
}

// ChatHandler serves conversation lists and history over HTTP.
type ChatHandler struct {
	members  Membership
	messages ports.MessageStore
}

func NewChatHandler(members Membership, messages ports.MessageStore) *ChatHandler {
	return &ChatHandler{members: members, messages: messages}
}

type conversationParams struct {
	ID string `param:"id" validate:"required"`
}

type conversationsResponse struct {
	Conversations []*domain.Conversation `json:"conversations"`
}

type messagesResponse struct {
	Messages []*domain.Message `json:"messages"`
}

// ListConversations handles GET /chat/conversations.
func (h *ChatHandler) ListConversations(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	convs, err := h.members.ListConversations(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conversationsResponse{Conversations: convs})
}

// RecentMessages handles GET /chat/conversations/:id/messages. It returns the
// newest messages in chronological order.
func (h *ChatHandler) RecentMessages(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var p conversationParams
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}
	if err := c.Validate(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if err := h.members.Authorize(ctx, id, p.ID); err != nil {
		return err
	}

	msgs, err := h.messages.Recent(ctx, p.ID, domain.RecentLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messagesResponse{Messages: msgs})
}
