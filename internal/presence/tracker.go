// Package presence tracks the ephemeral per-chat hints shown in the chat
// window: whether the student is online and whether they are currently
// typing. Nothing here is persisted or tied to message history; the values
// are best-effort UI state fed by user_status and typing_status events.
package presence

import (
	"sync"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// Tracker holds student presence and typing state keyed by chat id.
type Tracker struct {
	mu     sync.RWMutex
	status map[string]string // chatID -> "online" | "offline"
	typing map[string]bool   // chatID -> student is typing
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		status: make(map[string]string),
		typing: make(map[string]bool),
	}
}

// SetStudentStatus records the student's connectivity for a chat.
func (t *Tracker) SetStudentStatus(chatID, status string) {
	t.mu.Lock()
	t.status[chatID] = status
	t.mu.Unlock()
}

// StudentStatus returns the last known student status for a chat, or the
// empty string if no user_status event has been seen yet.
func (t *Tracker) StudentStatus(chatID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status[chatID]
}

// StudentOnline reports whether the student was last seen online.
func (t *Tracker) StudentOnline(chatID string) bool {
	return t.StudentStatus(chatID) == protocol.PresenceOnline
}

// SetTyping records whether the student is typing in a chat.
func (t *Tracker) SetTyping(chatID string, isTyping bool) {
	t.mu.Lock()
	t.typing[chatID] = isTyping
	t.mu.Unlock()
}

// Typing reports whether the student is currently typing in a chat.
func (t *Tracker) Typing(chatID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typing[chatID]
}

// Reset drops all ephemeral state for a chat, e.g. when it closes.
func (t *Tracker) Reset(chatID string) {
	t.mu.Lock()
	delete(t.status, chatID)
	delete(t.typing, chatID)
	t.mu.Unlock()
}
