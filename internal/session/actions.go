package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/counseldesk/operator-console/internal/metrics"
	"github.com/counseldesk/operator-console/internal/protocol"
)

// Select opens a conversation: it becomes the single active chat, the room
// is joined (idempotently), a read receipt is emitted, and the timeline is
// replaced by the aggregated history snapshot. A failed history fetch is
// returned to the caller to surface as "failed to load"; live pushes for the
// chat keep landing regardless.
func (m *Manager) Select(ctx context.Context, chatID string) error {
	m.setActive(chatID)

	m.send(protocol.TypeJoinChat, protocol.JoinChatMsg{ChatID: chatID})
	m.MarkRead(chatID)

	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, m.historyTimeout)
	defer cancel()

	msgs, err := m.api.History(fetchCtx, chatID)
	if err != nil {
		log.Printf("[session] history fetch chat=%s: %v", chatID, err)
		return fmt.Errorf("session: load history for chat %s: %w", chatID, err)
	}
	metrics.HistoryFetchSeconds.Observe(time.Since(start).Seconds())

	// The snapshot replaces any partial state; pushes racing the fetch are
	// reconciled by the timeline's id dedupe.
	m.timeline.Replace(chatID, msgs)
	return nil
}

// Deselect closes the chat window. No leave event exists in the protocol;
// clearing the pointer is enough to stop the unread suppression for
// subsequent events.
func (m *Manager) Deselect() {
	m.setActive("")
}

// SendMessage emits an operator message into a chat. Content is trimmed here
// at the session boundary; empty or whitespace-only content is never sent.
// While disconnected the action is a silent no-op. The message appears in
// the local timeline through the server's new_message echo, deduped by id.
func (m *Manager) SendMessage(chatID, content string) error {
	content = trimContent(content)
	if err := protocol.ValidateContent(content); err != nil {
		return fmt.Errorf("session: refusing to send: %w", err)
	}
	if !m.transport.Connected() {
		return nil
	}

	m.typing.Stop(chatID)
	m.send(protocol.TypeSendMessage, protocol.SendMessageMsg{
		ID:         newMessageID(),
		ChatID:     chatID,
		Content:    content,
		SenderType: protocol.SenderOperator,
		SenderID:   m.identity.OperatorID,
		SenderName: m.identity.Name,
	})
	metrics.MessagesSent.Inc()
	return nil
}

// Keystroke feeds the typing debouncer: typing=true goes out once per burst,
// typing=false after the quiet period. Fire-and-forget; meaningless while
// disconnected and silently dropped then.
func (m *Manager) Keystroke(chatID string) {
	m.typing.Keystroke(chatID)
}

// SendTyping drives the indicator explicitly. true counts as a keystroke
// into the debouncer, false ends the burst without waiting for the quiet
// period.
func (m *Manager) SendTyping(chatID string, isTyping bool) {
	if isTyping {
		m.typing.Keystroke(chatID)
		return
	}
	m.typing.Stop(chatID)
}

// MarkRead emits a read receipt and optimistically zeroes the local unread
// counter. The server's messages_read echo reconfirms the same state, which
// is a no-op by construction.
func (m *Manager) MarkRead(chatID string) {
	m.roster.ZeroUnread(chatID)
	m.rosterChanged()
	m.send(protocol.TypeMarkRead, protocol.MarkReadMsg{
		ChatID:     chatID,
		OperatorID: m.identity.OperatorID,
	})
}

// CloseChat asks the REST collaborator to close the conversation. On failure
// the error is returned for the operator to see and local state is left
// untouched: the chat only transitions to closed on the chat_closed push.
func (m *Manager) CloseChat(ctx context.Context, chatID string) error {
	if err := m.api.Close(ctx, chatID, m.identity.OperatorID, m.identity.Role); err != nil {
		return fmt.Errorf("session: close chat %s: %w", chatID, err)
	}
	return nil
}
