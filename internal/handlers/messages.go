package handlers

import (
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"chat-service/internal/delivery"
)

type MessageHandler struct {
	engine *delivery.Engine
}

func NewMessageHandler(engine *delivery.Engine) *MessageHandler {
	return &MessageHandler{engine: engine}
}

// History returns every message between the caller and the other user in
// creation order. Friends only.
func (h *MessageHandler) History(c *gin.Context) {
	userID := userIDFromContext(c)
	otherID := c.Param("other_user_id")

	msgs, err := h.engine.History(c.Request.Context(), userID, otherID)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFriends) {
			c.JSON(nethttp.StatusForbidden, gin.H{"error": "not friends"})
			return
		}
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(nethttp.StatusOK, msgs)
}
