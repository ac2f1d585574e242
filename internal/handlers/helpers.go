package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-service/internal/middleware"
)

func requestIDFromHeader(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return requestID
}

func userIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(middleware.CtxUserID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func usernameFromContext(c *gin.Context) string {
	if v, ok := c.Get(middleware.CtxUsername); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}
