package protocol

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Chat status values. A chat is OPEN for its whole active life and
// transitions exactly once to one of the terminal closed states.
const (
	StatusOpen               = "OPEN"
	StatusClosedByStudent    = "CLOSED_BY_STUDENT"
	StatusClosedByCounsellor = "CLOSED_BY_COUNSELLOR"
)

// closedBy values carried on chat_closed events.
const (
	ClosedByStudent    = "STUDENT"
	ClosedByCounsellor = "COUNSELLOR"
)

// Participant types appearing in senderType / userType / readerType fields.
const (
	SenderStudent    = "Student"
	SenderOperator   = "Operator"
	SenderCounsellor = "Counsellor"
	SenderAdmin      = "Admin"
	SenderSupervisor = "Supervisor"
)

// Presence status values carried on user_status events.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// MaxContentChars is the maximum character count for message content.
const MaxContentChars = 50000

// Chat is the roster summary of one student conversation. The id is
// server-assigned and stable for the conversation lifetime; a returning
// student may get a new chat record, which the roster matches by studentId.
type Chat struct {
	ID                    string    `json:"id"`
	StudentID             string    `json:"studentId"`
	StudentName           string    `json:"studentName"`
	StudentPhone          string    `json:"studentPhone"`
	Status                string    `json:"status"`
	LastMessage           string    `json:"lastMessage"`
	LastMessageAt         time.Time `json:"lastMessageAt"`
	UnreadCountCounsellor int       `json:"unreadCountCounsellor"`
}

// Closed reports whether the chat has reached a terminal status.
func (c *Chat) Closed() bool {
	return c.Status == StatusClosedByStudent || c.Status == StatusClosedByCounsellor
}

// ChatMessage is one message in a chat timeline. Messages are immutable once
// created; only the delivery flags advance, and only from false to true.
// IsDelivered and IsRead are tracked for operator-authored messages.
type ChatMessage struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chatId"`
	SenderType  string    `json:"senderType"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Content     string    `json:"content"`
	IsDelivered bool      `json:"isDelivered"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ValidateContent checks that outbound message content meets the wire
// contract. Whitespace trimming is the caller's responsibility; this only
// rejects what the server would refuse.
func ValidateContent(text string) error {
	if len(text) == 0 {
		return fmt.Errorf("protocol: message content is empty")
	}
	if utf8.RuneCountInString(text) > MaxContentChars {
		return fmt.Errorf("protocol: message exceeds %d character limit", MaxContentChars)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("protocol: message contains invalid UTF-8")
	}
	return nil
}
