package handlers

import (
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-service/internal/repositories"
)

const searchLimit = 50

type UserHandler struct {
	users repositories.UserRepository
}

func NewUserHandler(users repositories.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Search finds users by username substring, excluding the caller. An empty
// query returns an empty list rather than everyone.
func (h *UserHandler) Search(c *gin.Context) {
	userID := userIDFromContext(c)

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(nethttp.StatusOK, []gin.H{})
		return
	}

	users, err := h.users.Search(c.Request.Context(), q, userID, searchLimit)
	if err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}

	resp := make([]gin.H, 0, len(users))
	for _, u := range users {
		resp = append(resp, gin.H{"id": u.ID, "username": u.Username})
	}

	c.JSON(nethttp.StatusOK, resp)
}
