package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-service/internal/middleware"
	"chat-service/internal/mocks"
	"chat-service/internal/models"
	"chat-service/internal/services"
)

func setupAuthRouter(users *mocks.MockUserRepository, tokens *mocks.MockTokenRepository) (*gin.Engine, *services.TokenService) {
	gin.SetMode(gin.TestMode)
	tokenService := services.NewTokenService("test-secret", time.Hour, tokens)
	handler := NewAuthHandler(users, tokenService, nil)

	r := gin.New()
	r.POST("/signup", handler.Signup)
	r.POST("/login", handler.Login)

	auth := r.Group("", middleware.Auth(tokenService, users))
	auth.POST("/logout", handler.Logout)
	auth.GET("/check_token", handler.CheckToken)
	return r, tokenService
}

func TestSignupCreatesUser(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router, _ := setupAuthRouter(users, new(mocks.MockTokenRepository))

	users.On("Create", mock.Anything, "alice", mock.Anything).
		Return(&models.User{ID: "u-alice", Username: "alice"}, nil)

	rec := postJSON(t, router, "/signup", `{"username":"alice","password":"abcdef12"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":"u-alice"`)
}

func TestSignupRejectsWeakPassword(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router, _ := setupAuthRouter(users, new(mocks.MockTokenRepository))

	rec := postJSON(t, router, "/signup", `{"username":"alice","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignupRejectsLongUsername(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router, _ := setupAuthRouter(users, new(mocks.MockTokenRepository))

	rec := postJSON(t, router, "/signup", `{"username":"this-name-is-way-too-long-to-register","password":"abcdef12"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginIssuesToken(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router, _ := setupAuthRouter(users, new(mocks.MockTokenRepository))

	hash, err := services.HashPassword("abcdef12")
	require.NoError(t, err)
	users.On("GetByUsername", mock.Anything, "alice").
		Return(&models.User{ID: "u-alice", Username: "alice", PasswordHash: hash}, nil)

	rec := postJSON(t, router, "/login", `{"username":"alice","password":"abcdef12"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"token"`)
	require.Contains(t, rec.Body.String(), `"user_id":"u-alice"`)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router, _ := setupAuthRouter(users, new(mocks.MockTokenRepository))

	hash, err := services.HashPassword("abcdef12")
	require.NoError(t, err)
	users.On("GetByUsername", mock.Anything, "alice").
		Return(&models.User{ID: "u-alice", Username: "alice", PasswordHash: hash}, nil)

	rec := postJSON(t, router, "/login", `{"username":"alice","password":"wrongpass1"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	users := new(mocks.MockUserRepository)
	tokens := new(mocks.MockTokenRepository)
	router, tokenService := setupAuthRouter(users, tokens)

	users.On("GetByID", mock.Anything, "u-alice").
		Return(&models.User{ID: "u-alice", Username: "alice"}, nil)
	tokens.On("IsRevoked", mock.Anything, mock.Anything).Return(false, nil)
	tokens.On("Revoke", mock.Anything, mock.Anything).Return(nil)

	signed, err := tokenService.Issue("u-alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	tokens.AssertCalled(t, "Revoke", mock.Anything, mock.Anything)
}

func TestCheckTokenWithoutHeaderReturnsUnauthorized(t *testing.T) {
	router, _ := setupAuthRouter(new(mocks.MockUserRepository), new(mocks.MockTokenRepository))

	req := httptest.NewRequest(http.MethodGet, "/check_token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckTokenWithRevokedTokenReturnsUnauthorized(t *testing.T) {
	users := new(mocks.MockUserRepository)
	tokens := new(mocks.MockTokenRepository)
	router, tokenService := setupAuthRouter(users, tokens)

	tokens.On("IsRevoked", mock.Anything, mock.Anything).Return(true, nil)

	signed, err := tokenService.Issue("u-alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/check_token", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "token revoked")
}
