package ws

import "encoding/json"

// Event names are the wire contract of the live channel. Client-originated
// events use the first person ("i_..."), the server-fanned counterpart uses
// the third ("he_...").
const (
	// server -> client
	EventConnected         = "connected"
	EventError             = "error"
	EventNewMessage        = "new_message"
	EventHeReceivedMessage = "he_received_message"
	EventHeReadMessage     = "he_read_message"
	EventHeIsWriting       = "he_is_writing"
	EventHeStoppedWriting  = "he_stopped_writing"
	EventNewRequest        = "new_request"
	EventRequestAccepted   = "request_accepted"
	EventRequestRejected   = "request_rejected"
	EventRequestCanceled   = "request_canceled"

	// client -> server
	EventSendMessage      = "send_message"
	EventIReceivedMessage = "i_received_message"
	EventIReadMessage     = "i_read_message"
	EventIAmWriting       = "i_am_writing"
	EventIStoppedWriting  = "i_stopped_writing"
)

// Envelope frames every message on the live channel in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound payloads.

type SendMessagePayload struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	ImageB64    string `json:"image_b64,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

type AckPayload struct {
	MessageID string `json:"message_id"`
}

type WritingPayload struct {
	RecipientID string `json:"recipient_id"`
}

// Outbound payloads.

type ConnectedPayload struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
