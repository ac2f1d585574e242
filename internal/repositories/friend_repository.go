package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-service/internal/models"
	"chat-service/internal/rabbitmq"
)

var (
	// ErrRequestForbidden marks a request the caller is not a party allowed
	// to act on (only the sender cancels, only the recipient responds).
	ErrRequestForbidden = errors.New("friend request not allowed")
	// ErrRequestClosed marks a transition attempted on a request that already
	// reached a terminal state.
	ErrRequestClosed = errors.New("friend request already handled")
)

type FriendRepository interface {
	CreateRequest(ctx context.Context, fromUserID, toUserID string) (*models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID string) (*models.FriendRequest, error)
	GetIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	GetSentRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, userID string) error
	RejectRequest(ctx context.Context, requestID, userID string) error
	CancelRequest(ctx context.Context, requestID, userID string) error
	ListFriends(ctx context.Context, userID string) ([]string, error)
	HasPendingRequest(ctx context.Context, fromUserID, toUserID string) (bool, error)
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)
}

type friendRepository struct {
	db        *sqlx.DB
	publisher rabbitmq.Publisher
}

func NewFriendRepository(db *sqlx.DB, publisher rabbitmq.Publisher) FriendRepository {
	return &friendRepository{db: db, publisher: publisher}
}

func (r *friendRepository) CreateRequest(ctx context.Context, fromUserID, toUserID string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.QueryRowxContext(ctx, `
INSERT INTO friend_requests (id, from_user_id, to_user_id, status)
VALUES ($1, $2, $3, 'pending')
RETURNING id, from_user_id, to_user_id, status, created_at, updated_at
`, uuid.NewString(), fromUserID, toUserID).StructScan(&req)
	if err != nil {
		return nil, err
	}

	r.logPublish(ctx, "friend.request.created", map[string]any{
		"request_id":   req.ID,
		"from_user_id": req.FromUserID,
		"to_user_id":   req.ToUserID,
		"created_at":   req.CreatedAt,
	})

	return &req, nil
}

func (r *friendRepository) GetRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `
SELECT id, from_user_id, to_user_id, status, created_at, updated_at
FROM friend_requests
WHERE id=$1
`, requestID)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *friendRepository) GetIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.SelectContext(ctx, &reqs, `
SELECT id, from_user_id, to_user_id, status, created_at, updated_at
FROM friend_requests
WHERE to_user_id=$1 AND status='pending'
ORDER BY created_at DESC
`, userID)
	return reqs, err
}

func (r *friendRepository) GetSentRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.SelectContext(ctx, &reqs, `
SELECT id, from_user_id, to_user_id, status, created_at, updated_at
FROM friend_requests
WHERE from_user_id=$1 AND status='pending'
ORDER BY created_at DESC
`, userID)
	return reqs, err
}

func (r *friendRepository) AcceptRequest(ctx context.Context, requestID, userID string) error {
	var eventPayload map[string]any
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		req, err := r.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.ToUserID != userID {
			return ErrRequestForbidden
		}
		if req.Terminal() {
			return ErrRequestClosed
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE friend_requests SET status='accepted', updated_at=NOW() WHERE id=$1`,
			requestID); err != nil {
			return err
		}

		if err := r.insertFriendship(ctx, tx, req.FromUserID, req.ToUserID); err != nil {
			return err
		}
		if err := r.insertFriendship(ctx, tx, req.ToUserID, req.FromUserID); err != nil {
			return err
		}

		eventPayload = map[string]any{
			"request_id": req.ID,
			"user_id":    req.FromUserID,
			"friend_id":  req.ToUserID,
		}
		return nil
	})
	if err != nil {
		return err
	}

	if eventPayload != nil {
		r.logPublish(ctx, "friendship.created", eventPayload)
	}

	return nil
}

func (r *friendRepository) RejectRequest(ctx context.Context, requestID, userID string) error {
	return r.closeRequest(ctx, requestID, models.RequestRejected, func(req *models.FriendRequest) bool {
		return req.ToUserID == userID
	})
}

func (r *friendRepository) CancelRequest(ctx context.Context, requestID, userID string) error {
	return r.closeRequest(ctx, requestID, models.RequestCanceled, func(req *models.FriendRequest) bool {
		return req.FromUserID == userID
	})
}

// closeRequest moves a pending request into the given terminal state, provided
// the caller passes the party check. Conditional UPDATEs keep concurrent
// decisions serialized per request id: the loser observes zero rows.
func (r *friendRepository) closeRequest(ctx context.Context, requestID, status string, allowed func(*models.FriendRequest) bool) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		req, err := r.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !allowed(req) {
			return ErrRequestForbidden
		}
		if req.Terminal() {
			return ErrRequestClosed
		}

		res, err := tx.ExecContext(ctx, `
UPDATE friend_requests SET status=$2, updated_at=NOW()
WHERE id=$1 AND status='pending'
`, requestID, status)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrRequestClosed
		}
		return nil
	})
}

func (r *friendRepository) ListFriends(ctx context.Context, userID string) ([]string, error) {
	var friends []string
	err := r.db.SelectContext(ctx, &friends, `
SELECT friend_id
FROM friendships
WHERE user_id=$1
ORDER BY friend_id
`, userID)
	return friends, err
}

func (r *friendRepository) HasPendingRequest(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
SELECT EXISTS(
SELECT 1 FROM friend_requests
WHERE from_user_id=$1 AND to_user_id=$2 AND status='pending'
)
`, fromUserID, toUserID)
	return exists, err
}

func (r *friendRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
SELECT EXISTS(
SELECT 1 FROM friendships WHERE user_id=$1 AND friend_id=$2
)
`, userID, otherID)
	return exists, err
}

func (r *friendRepository) lockRequest(ctx context.Context, tx *sqlx.Tx, requestID string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := tx.GetContext(ctx, &req, `
SELECT id, from_user_id, to_user_id, status, created_at, updated_at
FROM friend_requests
WHERE id=$1
FOR UPDATE
`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &req, nil
}

func (r *friendRepository) insertFriendship(ctx context.Context, tx *sqlx.Tx, userID, friendID string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO friendships (id, user_id, friend_id) VALUES ($1, $2, $3)
ON CONFLICT (user_id, friend_id) DO NOTHING
`, uuid.NewString(), userID, friendID)
	return err
}

func (r *friendRepository) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *friendRepository) logPublish(ctx context.Context, eventType string, payload any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, eventType, payload); err != nil {
		log.Printf("warning: failed to publish %s: %v", eventType, err)
	}
}
