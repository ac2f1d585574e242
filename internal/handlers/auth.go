package handlers

import (
	"context"
	"database/sql"
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"chat-service/internal/middleware"
	"chat-service/internal/repositories"
	"chat-service/internal/services"
	"chat-service/internal/telemetry"
)

const maxUsernameLen = 20

type AuthHandler struct {
	users  repositories.UserRepository
	tokens *services.TokenService
	audit  *telemetry.AuditEmitter
}

func NewAuthHandler(users repositories.UserRepository, tokens *services.TokenService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, audit: audit}
}

type credentialsBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	requestID := requestIDFromHeader(c)

	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" || len(username) > maxUsernameLen {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "username must be 1-20 characters"})
		return
	}
	if err := services.ValidatePassword(body.Password); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := services.HashPassword(body.Password)
	if err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Create(ctx, username, hash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			c.JSON(nethttp.StatusConflict, gin.H{"error": "username already exists"})
			return
		}
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	h.emitAudit(ctx, "INFO", "user '"+username+"' signed up", requestID, user.ID)
	c.JSON(nethttp.StatusCreated, gin.H{"user_id": user.ID})
}

func (h *AuthHandler) Login(c *gin.Context) {
	requestID := requestIDFromHeader(c)

	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByUsername(ctx, strings.TrimSpace(body.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if !services.CheckPassword(body.Password, user.PasswordHash) {
		h.emitAudit(ctx, "WARN", "failed login for '"+user.Username+"'", requestID, user.ID)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	h.emitAudit(ctx, "INFO", "user '"+user.Username+"' logged in", requestID, user.ID)
	c.JSON(nethttp.StatusOK, gin.H{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// Logout revokes the presented token's jti; the token dies immediately even
// though its expiry is days away.
func (h *AuthHandler) Logout(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)

	jti := ""
	if v, ok := c.Get(middleware.CtxTokenJTI); ok {
		jti, _ = v.(string)
	}
	if jti == "" {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx := c.Request.Context()
	if err := h.tokens.Revoke(ctx, jti); err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	h.emitAudit(ctx, "INFO", "user logged out", requestID, userID)
	c.JSON(nethttp.StatusOK, gin.H{"message": "logged out"})
}

// CheckToken answers 200 for a valid bearer token; the middleware already
// rejected everything else.
func (h *AuthHandler) CheckToken(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"message": "valid"})
}

func (h *AuthHandler) emitAudit(ctx context.Context, level, text, requestID, userID string) {
	if h.audit == nil {
		return
	}
	h.audit.EmitAudit(ctx, level, text, requestID, userID)
}
