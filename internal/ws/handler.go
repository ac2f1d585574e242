package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/services"
)

// MessageService is the slice of the delivery engine the live channel needs.
type MessageService interface {
	SendMessage(ctx context.Context, senderID, senderUsername string, p SendMessagePayload) (*models.Message, error)
	MarkReceived(ctx context.Context, messageID, ackerID string) error
	MarkRead(ctx context.Context, messageID, ackerID string) error
}

// TypingService forwards ephemeral is-writing signals.
type TypingService interface {
	NotifyTyping(senderID, recipientID string) bool
	NotifyStopped(senderID, recipientID string)
}

// Handler upgrades authenticated requests into live channels and dispatches
// inbound events to the delivery engine and typing signaler.
type Handler struct {
	registry *Registry
	tokens   *services.TokenService
	users    repositories.UserRepository
	messages MessageService
	typing   TypingService
	upgrader websocket.Upgrader
}

func NewHandler(registry *Registry, tokens *services.TokenService, users repositories.UserRepository, messages MessageService, typing TypingService) *Handler {
	return &Handler{
		registry: registry,
		tokens:   tokens,
		users:    users,
		messages: messages,
		typing:   typing,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client connects cross-origin; bearer-token auth is
			// the access control, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws?token=... — the token is validated once at connect
// time and trusted for the channel's lifetime.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter required"})
		return
	}

	claims, err := h.tokens.Validate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("warning: websocket upgrade failed for user %s: %v", user.ID, err)
		return
	}

	conn := newConn(user.ID, sock)
	h.registry.Register(conn)
	defer h.registry.Unregister(conn)

	go conn.writePump()

	conn.enqueue(outbound{Event: EventConnected, Data: ConnectedPayload{
		Message: "connected",
		UserID:  user.ID,
	}})

	conn.readPump(func(c *Conn, env Envelope) {
		h.dispatch(c, user, env)
	})
}

func (h *Handler) dispatch(c *Conn, user *models.User, env Envelope) {
	ctx := context.Background()

	switch env.Event {
	case EventSendMessage:
		var p SendMessagePayload
		if !decode(c, env.Data, &p) {
			return
		}
		if _, err := h.messages.SendMessage(ctx, user.ID, user.Username, p); err != nil {
			c.enqueue(outbound{Event: EventError, Data: ErrorPayload{Message: err.Error()}})
		}

	case EventIReceivedMessage:
		var p AckPayload
		if !decode(c, env.Data, &p) {
			return
		}
		if err := h.messages.MarkReceived(ctx, p.MessageID, user.ID); err != nil {
			c.enqueue(outbound{Event: EventError, Data: ErrorPayload{Message: err.Error()}})
		}

	case EventIReadMessage:
		var p AckPayload
		if !decode(c, env.Data, &p) {
			return
		}
		if err := h.messages.MarkRead(ctx, p.MessageID, user.ID); err != nil {
			c.enqueue(outbound{Event: EventError, Data: ErrorPayload{Message: err.Error()}})
		}

	case EventIAmWriting:
		var p WritingPayload
		if !decode(c, env.Data, &p) {
			return
		}
		h.typing.NotifyTyping(user.ID, p.RecipientID)

	case EventIStoppedWriting:
		var p WritingPayload
		if !decode(c, env.Data, &p) {
			return
		}
		h.typing.NotifyStopped(user.ID, p.RecipientID)

	default:
		c.enqueue(outbound{Event: EventError, Data: ErrorPayload{Message: "unknown event"}})
	}
}

func decode(c *Conn, data json.RawMessage, into any) bool {
	if len(data) == 0 || json.Unmarshal(data, into) != nil {
		c.enqueue(outbound{Event: EventError, Data: ErrorPayload{Message: "malformed event payload"}})
		return false
	}
	return true
}
