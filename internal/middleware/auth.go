package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-service/internal/repositories"
	"chat-service/internal/services"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxUserID   = "userID"
	CtxUsername = "username"
	CtxTokenJTI = "tokenJTI"
)

// Auth validates the bearer token and loads the user it names. Requests with
// missing, invalid, expired, or revoked tokens are refused with 401.
func Auth(tokens *services.TokenService, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(authHeader[7:])

		claims, err := tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, services.ErrTokenRevoked) {
				msg = "token revoked"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			c.Abort()
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUsername, user.Username)
		c.Set(CtxTokenJTI, claims.JTI)
		c.Next()
	}
}
