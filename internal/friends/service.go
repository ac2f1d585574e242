package friends

import (
	"context"
	"errors"

	"github.com/lib/pq"

	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/ws"
)

var (
	ErrAlreadyFriends   = errors.New("already friends")
	ErrDuplicatePending = errors.New("friend request already sent")
	// ErrReversePending means the counterpart already has a pending request
	// towards the caller; the caller should respond to that one instead.
	ErrReversePending = errors.New("this user already sent you a friend request")
)

// EventSender fans an event out to every live connection of a user.
type EventSender interface {
	SendToUser(userID, event string, data any)
}

type requestEventPayload struct {
	RequestID    string `json:"request_id"`
	FromUserID   string `json:"from_user_id"`
	FromUsername string `json:"from_username"`
	ToUserID     string `json:"to_user_id"`
	ToUsername   string `json:"to_username"`
}

type decisionEventPayload struct {
	RequestID   string `json:"request_id"`
	ResponderID string `json:"responder_id"`
}

type cancelEventPayload struct {
	RequestID  string `json:"request_id"`
	CancelerID string `json:"canceler_id"`
}

// Service drives the friend-request state machine (pending -> accepted |
// rejected | canceled, all terminal) and broadcasts every lifecycle event
// to both parties' live connections.
type Service struct {
	friends repositories.FriendRepository
	users   repositories.UserRepository
	sender  EventSender
}

func NewService(friends repositories.FriendRepository, users repositories.UserRepository, sender EventSender) *Service {
	return &Service{friends: friends, users: users, sender: sender}
}

// SendRequest creates a pending request from one user to another. A pending
// request in the reverse direction is a conflict, not an implicit accept.
func (s *Service) SendRequest(ctx context.Context, from *models.User, toUserID string) (*models.FriendRequest, error) {
	toUser, err := s.users.GetByID(ctx, toUserID)
	if err != nil {
		return nil, err
	}

	alreadyFriends, err := s.friends.AreFriends(ctx, from.ID, toUserID)
	if err != nil {
		return nil, err
	}
	if alreadyFriends {
		return nil, ErrAlreadyFriends
	}

	pending, err := s.friends.HasPendingRequest(ctx, from.ID, toUserID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicatePending
	}

	reverse, err := s.friends.HasPendingRequest(ctx, toUserID, from.ID)
	if err != nil {
		return nil, err
	}
	if reverse {
		return nil, ErrReversePending
	}

	req, err := s.friends.CreateRequest(ctx, from.ID, toUserID)
	if err != nil {
		return nil, mapCreateConflict(err)
	}

	payload := requestEventPayload{
		RequestID:    req.ID,
		FromUserID:   from.ID,
		FromUsername: from.Username,
		ToUserID:     toUser.ID,
		ToUsername:   toUser.Username,
	}
	s.sender.SendToUser(toUser.ID, ws.EventNewRequest, payload)
	s.sender.SendToUser(from.ID, ws.EventNewRequest, payload)

	return req, nil
}

// mapCreateConflict translates violations of the partial unique indexes on
// pending requests into the same sentinels the pending checks report. Two
// concurrent sends can both pass HasPendingRequest; the index catches the
// loser at insert time.
func mapCreateConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		if pqErr.Constraint == "idx_friend_requests_pending_mirror" {
			return ErrReversePending
		}
		return ErrDuplicatePending
	}
	return err
}

// Respond accepts or rejects a pending request. Only the recipient may
// respond; accepting creates the symmetric friendship.
func (s *Service) Respond(ctx context.Context, requestID, responderID string, accept bool) error {
	req, err := s.friends.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	event := ws.EventRequestRejected
	if accept {
		event = ws.EventRequestAccepted
		err = s.friends.AcceptRequest(ctx, requestID, responderID)
	} else {
		err = s.friends.RejectRequest(ctx, requestID, responderID)
	}
	if err != nil {
		return err
	}

	payload := decisionEventPayload{RequestID: requestID, ResponderID: responderID}
	s.sender.SendToUser(req.FromUserID, event, payload)
	s.sender.SendToUser(req.ToUserID, event, payload)

	return nil
}

// Cancel withdraws a pending request. Only the original sender may cancel.
func (s *Service) Cancel(ctx context.Context, requestID, cancelerID string) error {
	req, err := s.friends.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	if err := s.friends.CancelRequest(ctx, requestID, cancelerID); err != nil {
		return err
	}

	payload := cancelEventPayload{RequestID: requestID, CancelerID: cancelerID}
	s.sender.SendToUser(req.ToUserID, ws.EventRequestCanceled, payload)
	s.sender.SendToUser(req.FromUserID, ws.EventRequestCanceled, payload)

	return nil
}
