// Package roster maintains the ordered collection of chat summaries shown in
// the operator's sidebar. Ordering is most-recent-activity-first: upserts move
// a student's row to the front. Chats are never removed; closed conversations
// stay in place with a terminal status until the console restarts.
package roster

import (
	"sync"
	"time"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// Roster is a goroutine-safe ordered list of chat summaries.
type Roster struct {
	mu    sync.RWMutex
	chats []protocol.Chat
}

// New creates an empty Roster.
func New() *Roster {
	return &Roster{}
}

// Replace swaps the entire roster for the server's authoritative list. Used
// for the chat_list_update full sync, e.g. after a reconnect.
func (r *Roster) Replace(chats []protocol.Chat) {
	r.mu.Lock()
	r.chats = make([]protocol.Chat, len(chats))
	copy(r.chats, chats)
	r.mu.Unlock()
}

// UpsertFront inserts or replaces a chat and moves it to the front of the
// roster. Matching is by studentId, not chat id: a returning student may open
// a new conversation record while the sidebar should treat it as the same row
// moving to the top. It returns the id of the replaced entry and whether a
// replacement happened, so the caller can refresh a selection pointing at the
// old record.
func (r *Roster) UpsertFront(chat protocol.Chat) (replacedID string, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.chats {
		if r.chats[i].StudentID == chat.StudentID {
			replacedID = r.chats[i].ID
			replaced = true
			r.chats = append(r.chats[:i], r.chats[i+1:]...)
			break
		}
	}
	r.chats = append([]protocol.Chat{chat}, r.chats...)
	return replacedID, replaced
}

// Patch replaces the fields of the chat with the matching id, keeping its
// roster position. Returns false if no chat with that id exists.
func (r *Roster) Patch(chat protocol.Chat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.chats {
		if r.chats[i].ID == chat.ID {
			r.chats[i] = chat
			return true
		}
	}
	return false
}

// IncrementUnread adds one to the counsellor-side unread counter for a chat.
func (r *Roster) IncrementUnread(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.chats {
		if r.chats[i].ID == chatID {
			r.chats[i].UnreadCountCounsellor++
			return
		}
	}
}

// ZeroUnread resets the counsellor-side unread counter for a chat. Idempotent.
func (r *Roster) ZeroUnread(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.chats {
		if r.chats[i].ID == chatID {
			r.chats[i].UnreadCountCounsellor = 0
			return
		}
	}
}

// SetLastMessage updates the denormalized activity cursor for a chat.
func (r *Roster) SetLastMessage(chatID, text string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.chats {
		if r.chats[i].ID == chatID {
			r.chats[i].LastMessage = text
			r.chats[i].LastMessageAt = at
			return
		}
	}
}

// SetStatus transitions a chat's status. The caller is responsible for only
// moving to terminal states via chat_closed events.
func (r *Roster) SetStatus(chatID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.chats {
		if r.chats[i].ID == chatID {
			r.chats[i].Status = status
			return
		}
	}
}

// Get returns a copy of the chat with the given id.
func (r *Roster) Get(chatID string) (protocol.Chat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.chats {
		if r.chats[i].ID == chatID {
			return r.chats[i], true
		}
	}
	return protocol.Chat{}, false
}

// List returns a copy of the roster in display order.
func (r *Roster) List() []protocol.Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Chat, len(r.chats))
	copy(out, r.chats)
	return out
}

// Len returns the number of chats in the roster.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}

// TotalUnread returns the sum of unread counters across all chats.
func (r *Roster) TotalUnread() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for i := range r.chats {
		total += r.chats[i].UnreadCountCounsellor
	}
	return total
}
