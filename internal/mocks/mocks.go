package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"chat-service/internal/models"
)

// MockUserRepository mocks user lookups for handlers and services.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, username string, passwordHash []byte) (*models.User, error) {
	args := m.Called(ctx, username, passwordHash)
	var user *models.User
	if val := args.Get(0); val != nil {
		user = val.(*models.User)
	}
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	var user *models.User
	if val := args.Get(0); val != nil {
		user = val.(*models.User)
	}
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	var user *models.User
	if val := args.Get(0); val != nil {
		user = val.(*models.User)
	}
	return user, args.Error(1)
}

func (m *MockUserRepository) Search(ctx context.Context, query, excludeUserID string, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, excludeUserID, limit)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

// MockFriendRepository mocks FriendRepository behavior for handlers and services.
type MockFriendRepository struct {
	mock.Mock
}

func (m *MockFriendRepository) CreateRequest(ctx context.Context, fromUserID, toUserID string) (*models.FriendRequest, error) {
	args := m.Called(ctx, fromUserID, toUserID)
	var req *models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(*models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *MockFriendRepository) GetRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	var req *models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(*models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *MockFriendRepository) GetIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	var reqs []models.FriendRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.FriendRequest)
	}
	return reqs, args.Error(1)
}

func (m *MockFriendRepository) GetSentRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	var reqs []models.FriendRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.FriendRequest)
	}
	return reqs, args.Error(1)
}

func (m *MockFriendRepository) AcceptRequest(ctx context.Context, requestID, userID string) error {
	args := m.Called(ctx, requestID, userID)
	return args.Error(0)
}

func (m *MockFriendRepository) RejectRequest(ctx context.Context, requestID, userID string) error {
	args := m.Called(ctx, requestID, userID)
	return args.Error(0)
}

func (m *MockFriendRepository) CancelRequest(ctx context.Context, requestID, userID string) error {
	args := m.Called(ctx, requestID, userID)
	return args.Error(0)
}

func (m *MockFriendRepository) ListFriends(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var friends []string
	if val := args.Get(0); val != nil {
		friends = val.([]string)
	}
	return friends, args.Error(1)
}

func (m *MockFriendRepository) HasPendingRequest(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	args := m.Called(ctx, fromUserID, toUserID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFriendRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

// MockMessageRepository mocks MessageRepository behavior for the delivery engine.
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, senderID, recipientID, content, imageFile string) (*models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, content, imageFile)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

func (m *MockMessageRepository) MarkReceived(ctx context.Context, msg *models.Message) (int64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, msg *models.Message) (int64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) History(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	args := m.Called(ctx, userID, otherID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

// MockTokenRepository mocks the jti revocation list.
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Revoke(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

func (m *MockTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

// MockPublisher mocks the RabbitMQ publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// SentEvent is one fan-out captured by RecordingSender.
type SentEvent struct {
	UserID string
	Event  string
	Data   any
}

// RecordingSender captures fan-out calls for assertions.
type RecordingSender struct {
	mu     sync.Mutex
	Events []SentEvent
}

func (s *RecordingSender) SendToUser(userID, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, SentEvent{UserID: userID, Event: event, Data: data})
}

// EventsFor returns the captured events fanned out to one user.
func (s *RecordingSender) EventsFor(userID string) []SentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SentEvent
	for _, e := range s.Events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}
