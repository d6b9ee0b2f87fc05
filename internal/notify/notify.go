// Package notify surfaces non-blocking operator notifications and republishes
// chat lifecycle events for downstream CRM consumers. The session manager
// calls it for chat_created pushes and student-initiated closes; it must
// never block event handling.
package notify

import (
	"log"
	"time"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// Notifier receives the two notification-worthy lifecycle events.
type Notifier interface {
	// ChatCreated fires when a new student conversation appears.
	ChatCreated(chat protocol.Chat)

	// ChatClosedByStudent fires when the student ends the conversation.
	ChatClosedByStudent(chatID string)
}

// CreatedNotice is the payload published for a new conversation.
type CreatedNotice struct {
	Chat protocol.Chat `json:"chat"`
	At   time.Time     `json:"at"`
}

// ClosedNotice is the payload published when a student closes a chat.
type ClosedNotice struct {
	ChatID   string    `json:"chatId"`
	ClosedBy string    `json:"closedBy"`
	At       time.Time `json:"at"`
}

// LogNotifier writes notifications to the process log. It is the default
// sink when no NATS bus is configured.
type LogNotifier struct{}

// ChatCreated implements Notifier.
func (LogNotifier) ChatCreated(chat protocol.Chat) {
	log.Printf("[notify] new chat %s from student %s (%s)", chat.ID, chat.StudentName, chat.StudentID)
}

// ChatClosedByStudent implements Notifier.
func (LogNotifier) ChatClosedByStudent(chatID string) {
	log.Printf("[notify] chat %s closed by student", chatID)
}

// Multi fans a notification out to several sinks in order.
type Multi []Notifier

// ChatCreated implements Notifier.
func (m Multi) ChatCreated(chat protocol.Chat) {
	for _, n := range m {
		n.ChatCreated(chat)
	}
}

// ChatClosedByStudent implements Notifier.
func (m Multi) ChatClosedByStudent(chatID string) {
	for _, n := range m {
		n.ChatClosedByStudent(chatID)
	}
}
