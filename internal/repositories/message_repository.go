package repositories

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-service/internal/models"
	"chat-service/internal/rabbitmq"
)

type MessageRepository interface {
	Create(ctx context.Context, senderID, recipientID, content, imageFile string) (*models.Message, error)
	GetByID(ctx context.Context, messageID string) (*models.Message, error)
	// MarkReceived advances the given message and every earlier still-'sent'
	// message in the same direction to 'received'. Returns the number of rows
	// advanced; zero means the message already moved past 'sent'.
	MarkReceived(ctx context.Context, msg *models.Message) (int64, error)
	// MarkRead advances the given message and every earlier unread message in
	// the same direction to 'read'.
	MarkRead(ctx context.Context, msg *models.Message) (int64, error)
	History(ctx context.Context, userID, otherID string) ([]models.Message, error)
}

type messageRepository struct {
	db        *sqlx.DB
	publisher rabbitmq.Publisher
}

func NewMessageRepository(db *sqlx.DB, publisher rabbitmq.Publisher) MessageRepository {
	return &messageRepository{db: db, publisher: publisher}
}

func (r *messageRepository) Create(ctx context.Context, senderID, recipientID, content, imageFile string) (*models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `
INSERT INTO messages (id, sender_id, recipient_id, content, image_file, status)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), 'sent')
RETURNING id, sender_id, recipient_id, content, image_file, status, created_at, updated_at
`, uuid.NewString(), senderID, recipientID, content, imageFile).StructScan(&msg)
	if err != nil {
		return nil, err
	}

	r.logPublish(ctx, "message.created", map[string]any{
		"message_id":   msg.ID,
		"sender_id":    msg.SenderID,
		"recipient_id": msg.RecipientID,
		"created_at":   msg.CreatedAt,
	})

	return &msg, nil
}

func (r *messageRepository) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `
SELECT id, sender_id, recipient_id, content, image_file, status, created_at, updated_at
FROM messages
WHERE id=$1
`, messageID)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) MarkReceived(ctx context.Context, msg *models.Message) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE messages SET status='received', updated_at=NOW()
WHERE sender_id=$1 AND recipient_id=$2 AND created_at<=$3 AND status='sent'
`, msg.SenderID, msg.RecipientID, msg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *messageRepository) MarkRead(ctx context.Context, msg *models.Message) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE messages SET status='read', updated_at=NOW()
WHERE sender_id=$1 AND recipient_id=$2 AND created_at<=$3 AND status IN ('sent','received')
`, msg.SenderID, msg.RecipientID, msg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *messageRepository) History(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `
SELECT id, sender_id, recipient_id, content, image_file, status, created_at, updated_at
FROM messages
WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
ORDER BY created_at ASC, id ASC
`, userID, otherID)
	return msgs, err
}

func (r *messageRepository) logPublish(ctx context.Context, eventType string, payload any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, eventType, payload); err != nil {
		log.Printf("warning: failed to publish %s: %v", eventType, err)
	}
}
