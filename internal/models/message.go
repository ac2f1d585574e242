package models

import (
	"database/sql"
	"time"
)

// Message delivery states. Transitions are strictly forward:
// sent -> received -> read.
const (
	MessageSent     = "sent"
	MessageReceived = "received"
	MessageRead     = "read"
)

type Message struct {
	ID          string         `db:"id" json:"id"`
	SenderID    string         `db:"sender_id" json:"sender_id"`
	RecipientID string         `db:"recipient_id" json:"recipient_id"`
	Content     string         `db:"content" json:"content"`
	ImageFile   sql.NullString `db:"image_file" json:"-"`
	Status      string         `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"-"`
}

// ImageURL returns the public path of the attached image, or "" when the
// message is text-only.
func (m *Message) ImageURL() string {
	if !m.ImageFile.Valid || m.ImageFile.String == "" {
		return ""
	}
	return "/uploads/" + m.ImageFile.String
}
