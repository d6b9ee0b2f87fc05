// Package timeline stores the per-chat ordered message lists backing the chat
// window. Lists are append-only in server-send order; the only mutation of an
// existing message is advancing its delivery flags, and only from false to
// true. Duplicate message ids are dropped to tolerate at-least-once delivery
// from the socket.
package timeline

import (
	"sync"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// Store holds one message timeline per chat. It is goroutine-safe.
type Store struct {
	mu    sync.RWMutex
	chats map[string]*chatTimeline
}

// chatTimeline keeps the ordered messages plus an id index for O(1) dedupe.
type chatTimeline struct {
	msgs  []protocol.ChatMessage
	index map[string]int // message id -> position in msgs
}

// New creates an empty Store.
func New() *Store {
	return &Store{chats: make(map[string]*chatTimeline)}
}

// Append adds a message to its chat's timeline. It returns false if a message
// with the same id is already present, in which case nothing changes.
func (s *Store) Append(msg protocol.ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.chats[msg.ChatID]
	if !ok {
		tl = &chatTimeline{index: make(map[string]int)}
		s.chats[msg.ChatID] = tl
	}

	if _, dup := tl.index[msg.ID]; dup {
		return false
	}
	tl.index[msg.ID] = len(tl.msgs)
	tl.msgs = append(tl.msgs, msg)
	return true
}

// Has reports whether a message id is already present in a chat's timeline.
func (s *Store) Has(chatID, msgID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.chats[chatID]
	if !ok {
		return false
	}
	_, present := tl.index[msgID]
	return present
}

// Replace swaps a chat's timeline for the history snapshot fetched over HTTP.
// The snapshot is authoritative for the point in time it was taken; push
// events racing the fetch are reconciled by the id dedupe in Append once both
// have landed. Duplicate ids inside the snapshot itself are dropped.
func (s *Store) Replace(chatID string, msgs []protocol.ChatMessage) {
	tl := &chatTimeline{index: make(map[string]int, len(msgs))}
	for _, m := range msgs {
		if _, dup := tl.index[m.ID]; dup {
			continue
		}
		tl.index[m.ID] = len(tl.msgs)
		tl.msgs = append(tl.msgs, m)
	}

	s.mu.Lock()
	s.chats[chatID] = tl
	s.mu.Unlock()
}

// MarkRead marks every message authored by senderID in the chat as read and
// delivered. Both flags are monotonic; messages already read are untouched.
// It returns the number of messages whose state advanced.
func (s *Store) MarkRead(chatID, senderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.chats[chatID]
	if !ok {
		return 0
	}

	changed := 0
	for i := range tl.msgs {
		if tl.msgs[i].SenderID != senderID {
			continue
		}
		if tl.msgs[i].IsRead {
			continue
		}
		tl.msgs[i].IsRead = true
		tl.msgs[i].IsDelivered = true
		changed++
	}
	return changed
}

// MarkDelivered marks every not-yet-read message authored by senderID in the
// chat as delivered. Delivered is a checkpoint strictly weaker than read, so
// read messages are left alone. Returns the number of messages advanced.
func (s *Store) MarkDelivered(chatID, senderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.chats[chatID]
	if !ok {
		return 0
	}

	changed := 0
	for i := range tl.msgs {
		if tl.msgs[i].SenderID != senderID {
			continue
		}
		if tl.msgs[i].IsRead || tl.msgs[i].IsDelivered {
			continue
		}
		tl.msgs[i].IsDelivered = true
		changed++
	}
	return changed
}

// Get returns a copy of a chat's timeline in order. Returns an empty slice
// for chats with no messages.
func (s *Store) Get(chatID string) []protocol.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.chats[chatID]
	if !ok {
		return []protocol.ChatMessage{}
	}
	out := make([]protocol.ChatMessage, len(tl.msgs))
	copy(out, tl.msgs)
	return out
}

// Len returns the number of messages stored for a chat.
func (s *Store) Len(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.chats[chatID]
	if !ok {
		return 0
	}
	return len(tl.msgs)
}
