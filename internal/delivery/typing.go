package delivery

import (
	"sync"
	"time"

	"chat-service/internal/ws"
)

// DefaultTypingWindow is the minimum gap between forwarded typing signals
// per pair. Enforced server-side so a misbehaving client cannot amplify
// fan-out.
const DefaultTypingWindow = 750 * time.Millisecond

type typingPair struct {
	senderID    string
	recipientID string
}

type writingEventPayload struct {
	SenderID string `json:"sender_id"`
}

// TypingSignaler forwards ephemeral is-writing signals between friends. No
// state survives the process; at most one he_is_writing per pair per window
// is forwarded, the rest are dropped.
type TypingSignaler struct {
	sender EventSender
	window time.Duration

	mu   sync.Mutex
	last map[typingPair]time.Time

	now func() time.Time
}

func NewTypingSignaler(sender EventSender, window time.Duration) *TypingSignaler {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &TypingSignaler{
		sender: sender,
		window: window,
		last:   make(map[typingPair]time.Time),
		now:    time.Now,
	}
}

// NotifyTyping forwards he_is_writing to the recipient unless the pair is
// still inside its debounce window. Reports whether the signal was forwarded.
func (t *TypingSignaler) NotifyTyping(senderID, recipientID string) bool {
	pair := typingPair{senderID: senderID, recipientID: recipientID}
	now := t.now()

	t.mu.Lock()
	if last, ok := t.last[pair]; ok && now.Sub(last) < t.window {
		t.mu.Unlock()
		return false
	}
	t.last[pair] = now
	t.prune(now)
	t.mu.Unlock()

	t.sender.SendToUser(recipientID, ws.EventHeIsWriting, writingEventPayload{SenderID: senderID})
	return true
}

// NotifyStopped forwards he_stopped_writing immediately and clears the pair's
// window so a fresh typing burst is forwarded without delay.
func (t *TypingSignaler) NotifyStopped(senderID, recipientID string) {
	t.Reset(senderID, recipientID)
	t.sender.SendToUser(recipientID, ws.EventHeStoppedWriting, writingEventPayload{SenderID: senderID})
}

// Reset clears the debounce window for the pair.
func (t *TypingSignaler) Reset(senderID, recipientID string) {
	pair := typingPair{senderID: senderID, recipientID: recipientID}
	t.mu.Lock()
	delete(t.last, pair)
	t.mu.Unlock()
}

// prune drops stale windows so the table stays bounded by the set of pairs
// active within the last window. Caller holds the lock.
func (t *TypingSignaler) prune(now time.Time) {
	if len(t.last) < 1024 {
		return
	}
	for pair, last := range t.last {
		if now.Sub(last) >= t.window {
			delete(t.last, pair)
		}
	}
}
