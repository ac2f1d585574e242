package friends

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-service/internal/mocks"
	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/ws"
)

func alice() *models.User   { return &models.User{ID: "u-alice", Username: "alice"} }
func bobUser() *models.User { return &models.User{ID: "u-bob", Username: "bob"} }

func newTestService(friendRepo *mocks.MockFriendRepository, users *mocks.MockUserRepository, sender *mocks.RecordingSender) *Service {
	return NewService(friendRepo, users, sender)
}

func TestSendRequestNotifiesBothParties(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	users := new(mocks.MockUserRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, users, sender)

	users.On("GetByID", mock.Anything, "u-bob").Return(bobUser(), nil)
	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-bob", "u-alice").Return(false, nil)
	friendRepo.On("CreateRequest", mock.Anything, "u-alice", "u-bob").
		Return(&models.FriendRequest{ID: "r1", FromUserID: "u-alice", ToUserID: "u-bob", Status: models.RequestPending}, nil)

	req, err := svc.SendRequest(context.Background(), alice(), "u-bob")
	require.NoError(t, err)
	require.Equal(t, models.RequestPending, req.Status)

	require.Len(t, sender.EventsFor("u-bob"), 1)
	require.Len(t, sender.EventsFor("u-alice"), 1)
	require.Equal(t, ws.EventNewRequest, sender.Events[0].Event)

	payload := sender.Events[0].Data.(requestEventPayload)
	require.Equal(t, "alice", payload.FromUsername)
	require.Equal(t, "bob", payload.ToUsername)
}

func TestSendRequestRejectsExistingFriendship(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	users := new(mocks.MockUserRepository)
	svc := newTestService(friendRepo, users, new(mocks.RecordingSender))

	users.On("GetByID", mock.Anything, "u-bob").Return(bobUser(), nil)
	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-bob").Return(true, nil)

	_, err := svc.SendRequest(context.Background(), alice(), "u-bob")
	require.ErrorIs(t, err, ErrAlreadyFriends)
	friendRepo.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendRequestRejectsDuplicatePending(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	users := new(mocks.MockUserRepository)
	svc := newTestService(friendRepo, users, new(mocks.RecordingSender))

	users.On("GetByID", mock.Anything, "u-bob").Return(bobUser(), nil)
	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-alice", "u-bob").Return(true, nil)

	_, err := svc.SendRequest(context.Background(), alice(), "u-bob")
	require.ErrorIs(t, err, ErrDuplicatePending)
}

func TestSendRequestRejectsReversePending(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	users := new(mocks.MockUserRepository)
	svc := newTestService(friendRepo, users, new(mocks.RecordingSender))

	users.On("GetByID", mock.Anything, "u-bob").Return(bobUser(), nil)
	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-bob", "u-alice").Return(true, nil)

	_, err := svc.SendRequest(context.Background(), alice(), "u-bob")
	require.ErrorIs(t, err, ErrReversePending)
}

func TestSendRequestConcurrentDuplicateCaughtByIndex(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	users := new(mocks.MockUserRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, users, sender)

	// A racing send in the same direction committed between our pending
	// check and the insert; the partial unique index rejects the loser.
	users.On("GetByID", mock.Anything, "u-bob").Return(bobUser(), nil)
	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-bob", "u-alice").Return(false, nil)
	friendRepo.On("CreateRequest", mock.Anything, "u-alice", "u-bob").
		Return(nil, &pq.Error{Code: "23505", Constraint: "idx_friend_requests_pending_pair"})

	_, err := svc.SendRequest(context.Background(), alice(), "u-bob")
	require.ErrorIs(t, err, ErrDuplicatePending)
	require.Empty(t, sender.Events)
}

func TestSendRequestConcurrentMirrorCaughtByIndex(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	users := new(mocks.MockUserRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, users, sender)

	// The counterpart's send in the reverse direction won the race; the
	// mirror index rejects this one even though both pending checks saw none.
	users.On("GetByID", mock.Anything, "u-bob").Return(bobUser(), nil)
	friendRepo.On("AreFriends", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-alice", "u-bob").Return(false, nil)
	friendRepo.On("HasPendingRequest", mock.Anything, "u-bob", "u-alice").Return(false, nil)
	friendRepo.On("CreateRequest", mock.Anything, "u-alice", "u-bob").
		Return(nil, &pq.Error{Code: "23505", Constraint: "idx_friend_requests_pending_mirror"})

	_, err := svc.SendRequest(context.Background(), alice(), "u-bob")
	require.ErrorIs(t, err, ErrReversePending)
	require.Empty(t, sender.Events)
}

func TestRespondAcceptNotifiesBothParties(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, new(mocks.MockUserRepository), sender)

	friendRepo.On("GetRequest", mock.Anything, "r1").
		Return(&models.FriendRequest{ID: "r1", FromUserID: "u-alice", ToUserID: "u-bob", Status: models.RequestPending}, nil)
	friendRepo.On("AcceptRequest", mock.Anything, "r1", "u-bob").Return(nil)

	require.NoError(t, svc.Respond(context.Background(), "r1", "u-bob", true))

	require.Len(t, sender.EventsFor("u-alice"), 1)
	require.Len(t, sender.EventsFor("u-bob"), 1)
	require.Equal(t, ws.EventRequestAccepted, sender.Events[0].Event)
}

func TestRespondRejectNotifiesBothParties(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, new(mocks.MockUserRepository), sender)

	friendRepo.On("GetRequest", mock.Anything, "r1").
		Return(&models.FriendRequest{ID: "r1", FromUserID: "u-alice", ToUserID: "u-bob", Status: models.RequestPending}, nil)
	friendRepo.On("RejectRequest", mock.Anything, "r1", "u-bob").Return(nil)

	require.NoError(t, svc.Respond(context.Background(), "r1", "u-bob", false))
	require.Equal(t, ws.EventRequestRejected, sender.Events[0].Event)
}

func TestRespondTerminalRequestFails(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, new(mocks.MockUserRepository), sender)

	friendRepo.On("GetRequest", mock.Anything, "r1").
		Return(&models.FriendRequest{ID: "r1", FromUserID: "u-alice", ToUserID: "u-bob", Status: models.RequestRejected}, nil)
	friendRepo.On("AcceptRequest", mock.Anything, "r1", "u-bob").Return(repositories.ErrRequestClosed)

	require.ErrorIs(t, svc.Respond(context.Background(), "r1", "u-bob", true), repositories.ErrRequestClosed)
	require.Empty(t, sender.Events)
}

func TestCancelNotifiesBothParties(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, new(mocks.MockUserRepository), sender)

	friendRepo.On("GetRequest", mock.Anything, "r1").
		Return(&models.FriendRequest{ID: "r1", FromUserID: "u-alice", ToUserID: "u-bob", Status: models.RequestPending}, nil)
	friendRepo.On("CancelRequest", mock.Anything, "r1", "u-alice").Return(nil)

	require.NoError(t, svc.Cancel(context.Background(), "r1", "u-alice"))

	require.Len(t, sender.EventsFor("u-bob"), 1)
	require.Equal(t, ws.EventRequestCanceled, sender.Events[0].Event)
	payload := sender.Events[0].Data.(cancelEventPayload)
	require.Equal(t, "u-alice", payload.CancelerID)
}

func TestCancelByRecipientFails(t *testing.T) {
	friendRepo := new(mocks.MockFriendRepository)
	sender := new(mocks.RecordingSender)
	svc := newTestService(friendRepo, new(mocks.MockUserRepository), sender)

	friendRepo.On("GetRequest", mock.Anything, "r1").
		Return(&models.FriendRequest{ID: "r1", FromUserID: "u-alice", ToUserID: "u-bob", Status: models.RequestPending}, nil)
	friendRepo.On("CancelRequest", mock.Anything, "r1", "u-bob").Return(repositories.ErrRequestForbidden)

	require.ErrorIs(t, svc.Cancel(context.Background(), "r1", "u-bob"), repositories.ErrRequestForbidden)
	require.Empty(t, sender.Events)
}
