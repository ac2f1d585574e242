package delivery

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"chat-service/internal/metrics"
	"chat-service/internal/models"
	"chat-service/internal/repositories"
	"chat-service/internal/ws"
)

var (
	ErrNotFriends      = errors.New("you are not friends with this user")
	ErrInvalidPayload  = errors.New("message must have content or image")
	ErrMessageNotFound = errors.New("message not found")
)

// EventSender fans an event out to every live connection of a user.
type EventSender interface {
	SendToUser(userID, event string, data any)
}

// MessagePayload is the new_message event body and the history item shape.
type MessagePayload struct {
	ID             string `json:"id"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	SenderUsername string `json:"sender_username,omitempty"`
	Content        string `json:"content"`
	ImageURL       string `json:"image_url,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

type ackEventPayload struct {
	MessageID string `json:"message_id"`
}

// Engine owns the per-message delivery state machine (sent -> received ->
// read) and routes message events through the connection registry. Only the
// recipient of a message may advance its status; the sender observes the
// transitions through fan-out events.
type Engine struct {
	messages repositories.MessageRepository
	friends  repositories.FriendRepository
	sender   EventSender
	images   *ImageStore
	typing   *TypingSignaler
}

func NewEngine(messages repositories.MessageRepository, friends repositories.FriendRepository, sender EventSender, images *ImageStore, typing *TypingSignaler) *Engine {
	return &Engine{
		messages: messages,
		friends:  friends,
		sender:   sender,
		images:   images,
		typing:   typing,
	}
}

// SendMessage persists a message in state 'sent' and fans the new_message
// event out to both parties (the sender's own other devices included).
func (e *Engine) SendMessage(ctx context.Context, senderID, senderUsername string, p ws.SendMessagePayload) (*models.Message, error) {
	if p.RecipientID == "" {
		metrics.IncMessageSent(metrics.StatusFailed)
		return nil, ErrInvalidPayload
	}

	content := strings.TrimSpace(p.Content)
	if content == "" && p.ImageB64 == "" {
		metrics.IncMessageSent(metrics.StatusFailed)
		return nil, ErrInvalidPayload
	}

	friends, err := e.friends.AreFriends(ctx, senderID, p.RecipientID)
	if err != nil {
		metrics.IncMessageSent(metrics.StatusFailed)
		return nil, err
	}
	if !friends {
		metrics.IncMessageSent(metrics.StatusFailed)
		return nil, ErrNotFriends
	}

	var imageFile string
	if p.ImageB64 != "" {
		imageFile, err = e.images.Save(p.ImageB64, p.Filename)
		if err != nil {
			metrics.IncMessageSent(metrics.StatusFailed)
			return nil, err
		}
	}

	msg, err := e.messages.Create(ctx, senderID, p.RecipientID, content, imageFile)
	if err != nil {
		metrics.IncMessageSent(metrics.StatusFailed)
		return nil, err
	}

	// A fresh message supersedes any outstanding typing indicator between
	// the pair; reset the window so the next signal passes immediately.
	if e.typing != nil {
		e.typing.Reset(senderID, p.RecipientID)
	}

	payload := messagePayload(msg, senderUsername)
	e.sender.SendToUser(msg.RecipientID, ws.EventNewMessage, payload)
	e.sender.SendToUser(msg.SenderID, ws.EventNewMessage, payload)

	metrics.IncMessageSent(metrics.StatusSuccess)
	return msg, nil
}

// MarkReceived handles the recipient's delivery acknowledgement. Duplicate or
// late acks (status already past 'sent') and acks from anyone other than the
// recipient are silent no-ops so that flaky clients can re-send freely.
func (e *Engine) MarkReceived(ctx context.Context, messageID, ackerID string) error {
	msg, err := e.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RecipientID != ackerID || msg.Status != models.MessageSent {
		return nil
	}

	advanced, err := e.messages.MarkReceived(ctx, msg)
	if err != nil {
		return err
	}
	if advanced == 0 {
		// Lost the race against a concurrent ack; the state already moved.
		return nil
	}

	e.sender.SendToUser(msg.SenderID, ws.EventHeReceivedMessage, ackEventPayload{MessageID: msg.ID})
	metrics.IncMessageAck("received")
	return nil
}

// MarkRead handles the recipient's read acknowledgement. Idempotent like
// MarkReceived; a message may go straight from 'sent' to 'read'.
func (e *Engine) MarkRead(ctx context.Context, messageID, ackerID string) error {
	msg, err := e.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RecipientID != ackerID || msg.Status == models.MessageRead {
		return nil
	}

	advanced, err := e.messages.MarkRead(ctx, msg)
	if err != nil {
		return err
	}
	if advanced == 0 {
		return nil
	}

	e.sender.SendToUser(msg.SenderID, ws.EventHeReadMessage, ackEventPayload{MessageID: msg.ID})
	metrics.IncMessageAck("read")
	return nil
}

// History returns all messages between the two users in creation order.
// The caller must be friends with the other party.
func (e *Engine) History(ctx context.Context, userID, otherID string) ([]MessagePayload, error) {
	friends, err := e.friends.AreFriends(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, ErrNotFriends
	}

	msgs, err := e.messages.History(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}

	out := make([]MessagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, messagePayload(&msgs[i], ""))
	}
	return out, nil
}

func (e *Engine) getMessage(ctx context.Context, messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, ErrMessageNotFound
	}
	msg, err := e.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

func messagePayload(m *models.Message, senderUsername string) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		SenderUsername: senderUsername,
		Content:        m.Content,
		ImageURL:       m.ImageURL(),
		Status:         m.Status,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
