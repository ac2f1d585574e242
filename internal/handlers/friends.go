package handlers

import (
	"context"
	"database/sql"
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"chat-service/internal/friends"
	"chat-service/internal/metrics"
	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/telemetry"
)

type FriendHandler struct {
	service *friends.Service
	friends repositories.FriendRepository
	users   repositories.UserRepository
	audit   *telemetry.AuditEmitter
}

func NewFriendHandler(service *friends.Service, friendRepo repositories.FriendRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *FriendHandler {
	return &FriendHandler{service: service, friends: friendRepo, users: users, audit: audit}
}

type sendRequestBody struct {
	ToUserID string `json:"to_user_id" binding:"required"`
}

type requestIDBody struct {
	RequestID string `json:"request_id" binding:"required"`
}

type respondBody struct {
	RequestID string `json:"request_id" binding:"required"`
	Action    string `json:"action" binding:"required"`
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)

	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.emitAudit(c.Request.Context(), "ERROR", "invalid request payload", requestID, userID)
		metrics.IncFriendRequest(metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "to_user_id is required"})
		return
	}

	if body.ToUserID == userID {
		metrics.IncFriendRequest(metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "cannot send request to yourself"})
		return
	}

	ctx := c.Request.Context()
	from := &models.User{ID: userID, Username: usernameFromContext(c)}
	req, err := h.service.SendRequest(ctx, from, body.ToUserID)
	if err != nil {
		metrics.IncFriendRequest(metrics.StatusFailed)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(nethttp.StatusNotFound, gin.H{"error": "target user not found"})
		case errors.Is(err, friends.ErrAlreadyFriends):
			c.JSON(nethttp.StatusConflict, gin.H{"error": "users are already friends"})
		case errors.Is(err, friends.ErrDuplicatePending):
			c.JSON(nethttp.StatusConflict, gin.H{"error": "pending friend request already exists"})
		case errors.Is(err, friends.ErrReversePending):
			c.JSON(nethttp.StatusConflict, gin.H{"error": "this user already sent you a friend request"})
		default:
			h.emitAudit(ctx, "ERROR", "internal error", requestID, userID)
			c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to create request"})
		}
		return
	}

	h.emitAudit(ctx, "INFO", "friend request sent to '"+body.ToUserID+"'", requestID, userID)
	metrics.IncFriendRequest(metrics.StatusSuccess)
	c.JSON(nethttp.StatusCreated, gin.H{"request_id": req.ID})
}

func (h *FriendHandler) Respond(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)

	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil || (body.Action != "accept" && body.Action != "reject") {
		metrics.IncFriendDecision("respond", metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "action must be 'accept' or 'reject'"})
		return
	}

	accept := body.Action == "accept"
	status := models.RequestRejected
	if accept {
		status = models.RequestAccepted
	}

	ctx := c.Request.Context()
	if err := h.service.Respond(ctx, body.RequestID, userID, accept); err != nil {
		h.handleDecisionError(c, err, body.Action, requestID, userID)
		return
	}

	h.emitAudit(ctx, "INFO", "friend request "+status, requestID, userID)
	metrics.IncFriendDecision(body.Action, metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, gin.H{"status": status})
}

func (h *FriendHandler) CancelRequest(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)

	var body requestIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		metrics.IncFriendDecision("cancel", metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "request_id is required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.service.Cancel(ctx, body.RequestID, userID); err != nil {
		h.handleDecisionError(c, err, "cancel", requestID, userID)
		return
	}

	h.emitAudit(ctx, "INFO", "friend request canceled", requestID, userID)
	metrics.IncFriendDecision("cancel", metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, gin.H{"status": models.RequestCanceled})
}

func (h *FriendHandler) handleDecisionError(c *gin.Context, err error, action, requestID, userID string) {
	metrics.IncFriendDecision(action, metrics.StatusFailed)
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.emitAudit(ctx, "ERROR", "friend request not found", requestID, userID)
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "request not found"})
	case errors.Is(err, repositories.ErrRequestForbidden):
		h.emitAudit(ctx, "ERROR", "not allowed to "+action+" this request", requestID, userID)
		c.JSON(nethttp.StatusForbidden, gin.H{"error": "not allowed to " + action + " this request"})
	case errors.Is(err, repositories.ErrRequestClosed):
		h.emitAudit(ctx, "ERROR", "friend request already handled", requestID, userID)
		c.JSON(nethttp.StatusConflict, gin.H{"error": "friend request already handled"})
	default:
		h.emitAudit(ctx, "ERROR", "internal error", requestID, userID)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to update request"})
	}
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID := userIDFromContext(c)

	friendIDs, err := h.friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to fetch friends"})
		return
	}

	resp := make([]gin.H, 0, len(friendIDs))
	for _, fid := range friendIDs {
		friendUser, err := h.users.GetByID(c.Request.Context(), fid)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to fetch friend info"})
			return
		}
		resp = append(resp, gin.H{"id": friendUser.ID, "username": friendUser.Username})
	}

	c.JSON(nethttp.StatusOK, resp)
}

func (h *FriendHandler) ListIncoming(c *gin.Context) {
	userID := userIDFromContext(c)

	requests, err := h.friends.GetIncomingRequests(c.Request.Context(), userID)
	if err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}

	resp := make([]gin.H, 0, len(requests))
	for _, req := range requests {
		sender, err := h.users.GetByID(c.Request.Context(), req.FromUserID)
		if err != nil {
			c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to fetch requester info"})
			return
		}
		resp = append(resp, gin.H{
			"request_id":    req.ID,
			"from_user_id":  sender.ID,
			"from_username": sender.Username,
			"created_at":    req.CreatedAt,
		})
	}

	c.JSON(nethttp.StatusOK, resp)
}

func (h *FriendHandler) ListSent(c *gin.Context) {
	userID := userIDFromContext(c)

	requests, err := h.friends.GetSentRequests(c.Request.Context(), userID)
	if err != nil {
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}

	resp := make([]gin.H, 0, len(requests))
	for _, req := range requests {
		recipient, err := h.users.GetByID(c.Request.Context(), req.ToUserID)
		if err != nil {
			c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to fetch recipient info"})
			return
		}
		resp = append(resp, gin.H{
			"request_id":  req.ID,
			"to_user_id":  recipient.ID,
			"to_username": recipient.Username,
			"created_at":  req.CreatedAt,
		})
	}

	c.JSON(nethttp.StatusOK, resp)
}

func (h *FriendHandler) emitAudit(ctx context.Context, level, text, requestID, userID string) {
	if h.audit == nil {
		return
	}
	h.audit.EmitAudit(ctx, level, text, requestID, userID)
}
