package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-service/internal/delivery"
	"chat-service/internal/middleware"
	"chat-service/internal/mocks"
	"chat-service/internal/models"
)

func setupMessagesRouter(messages *mocks.MockMessageRepository, friendRepo *mocks.MockFriendRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := delivery.NewEngine(messages, friendRepo, new(mocks.RecordingSender), nil, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "u-alice")
	})
	r.GET("/messages/history/:other_user_id", NewMessageHandler(engine).History)
	return r
}

func TestHistoryReturnsMessages(t *testing.T) {
	messages := new(mocks.MockMessageRepository)
	friendRepo := new(mocks.MockFriendRepository)
	router := setupMessagesRouter(messages, friendRepo)

	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-bob").Return(true, nil)
	messages.On("History", mock.Anything, "u-alice", "u-bob").Return([]models.Message{
		{ID: "m1", SenderID: "u-alice", RecipientID: "u-bob", Content: "hi", Status: models.MessageRead},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/messages/history/u-bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"m1"`)
	require.Contains(t, rec.Body.String(), `"status":"read"`)
}

func TestHistoryWithNonFriendReturnsForbidden(t *testing.T) {
	messages := new(mocks.MockMessageRepository)
	friendRepo := new(mocks.MockFriendRepository)
	router := setupMessagesRouter(messages, friendRepo)

	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-mallory").Return(false, nil)

	req := httptest.NewRequest(http.MethodGet, "/messages/history/u-mallory", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
}
