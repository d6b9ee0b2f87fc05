package session

import (
	"log"

	"github.com/counseldesk/operator-console/internal/metrics"
	"github.com/counseldesk/operator-console/internal/opsocket"
	"github.com/counseldesk/operator-console/internal/protocol"
)

// registerHandlers binds every inbound event to its state transition. Called
// once from Start; the handlers observe later selection changes through the
// active-chat cell, never through captured values.
func (m *Manager) registerHandlers() {
	m.on(protocol.TypeChatListUpdate, m.handleChatListUpdate)
	m.on(protocol.TypeChatAssigned, m.handleChatAssigned)
	m.on(protocol.TypeChatCreated, m.handleChatCreated)
	m.on(protocol.TypeChatUpdated, m.handleChatUpdated)
	m.on(protocol.TypeNewMessage, m.handleNewMessage)
	m.on(protocol.TypeMessagesRead, m.handleMessagesRead)
	m.on(protocol.TypeUserStatus, m.handleUserStatus)
	m.on(protocol.TypeMessagesDelivered, m.handleMessagesDelivered)
	m.on(protocol.TypeChatClosed, m.handleChatClosed)
	m.on(protocol.TypeTypingStatus, m.handleTypingStatus)
}

// on wraps a handler with the received-events counter.
func (m *Manager) on(eventType string, handler opsocket.EventHandler) {
	m.transport.On(eventType, func(msg interface{}) {
		metrics.EventsReceived.WithLabelValues(eventType).Inc()
		handler(msg)
	})
}

// handleChatListUpdate replaces the roster with the server's authoritative
// list. Sent sparingly, e.g. right after (re)connecting.
func (m *Manager) handleChatListUpdate(msg interface{}) {
	ev, ok := msg.(protocol.ChatListUpdateEvent)
	if !ok {
		return
	}
	m.roster.Replace(ev.Chats)

	// The active-chat invariant survives the sync: an open window never
	// shows an unread badge.
	if active := m.Active(); active != "" {
		m.roster.ZeroUnread(active)
	}
	m.rosterChanged()
}

// handleChatAssigned upserts the chat and joins its room immediately so read
// receipts for it are attributed to this operator.
func (m *Manager) handleChatAssigned(msg interface{}) {
	ev, ok := msg.(protocol.ChatAssignedEvent)
	if !ok {
		return
	}
	m.upsertPromote(ev.Chat)
	m.send(protocol.TypeJoinChat, protocol.JoinChatMsg{ChatID: ev.Chat.ID})
	m.rosterChanged()
}

// handleChatCreated upserts the chat and surfaces a non-blocking
// notification to the operator.
func (m *Manager) handleChatCreated(msg interface{}) {
	ev, ok := msg.(protocol.ChatCreatedEvent)
	if !ok {
		return
	}
	m.upsertPromote(ev.Chat)
	m.notifier.ChatCreated(ev.Chat)
	m.rosterChanged()
}

// upsertPromote applies the upsert-and-promote-to-front algorithm and keeps
// the selection pointer valid when the matched row carries a new chat id
// (returning student, fresh conversation record).
func (m *Manager) upsertPromote(chat protocol.Chat) {
	replacedID, replaced := m.roster.UpsertFront(chat)
	if replaced && replacedID != chat.ID && m.Active() == replacedID {
		m.setActive(chat.ID)
	}
	if m.Active() == chat.ID {
		m.roster.ZeroUnread(chat.ID)
	}
}

// handleChatUpdated patches the chat in place. If the patched chat is the
// open conversation, the unread counter is forced to zero regardless of the
// payload.
func (m *Manager) handleChatUpdated(msg interface{}) {
	ev, ok := msg.(protocol.ChatUpdatedEvent)
	if !ok {
		return
	}
	if !m.roster.Patch(ev.Chat) {
		log.Printf("[session] chat_updated for unknown chat=%s dropped", ev.Chat.ID)
		return
	}
	if m.Active() == ev.Chat.ID {
		m.roster.ZeroUnread(ev.Chat.ID)
	}
	m.rosterChanged()
}

// handleNewMessage appends a pushed message, maintains the denormalized
// roster cursor, and applies the unread rules. The duplicate decision is made
// once, before any side effect: a redelivered id neither appends nor touches
// the unread counter.
func (m *Manager) handleNewMessage(msg interface{}) {
	ev, ok := msg.(protocol.NewMessageEvent)
	if !ok {
		return
	}
	message := ev.Message

	if !m.timeline.Append(message) {
		metrics.DuplicateMessages.Inc()
		return
	}

	active := m.Active() == message.ChatID
	m.roster.SetLastMessage(message.ChatID, message.Content, message.CreatedAt)

	if message.SenderType == protocol.SenderStudent && !active {
		m.roster.IncrementUnread(message.ChatID)
	} else {
		m.roster.ZeroUnread(message.ChatID)
	}

	// The open window reads messages as they arrive: acknowledge
	// immediately so the student sees the receipt without waiting for the
	// operator to touch anything.
	if active && message.SenderType == protocol.SenderStudent {
		m.send(protocol.TypeMarkRead, protocol.MarkReadMsg{
			ChatID:     message.ChatID,
			OperatorID: m.identity.OperatorID,
		})
	}
	m.rosterChanged()
}

// handleMessagesRead applies the two-sided read semantics: a student reading
// marks this operator's own messages read, an operator reading (possibly this
// one, echoed back) zeroes the chat's unread counter.
func (m *Manager) handleMessagesRead(msg interface{}) {
	ev, ok := msg.(protocol.MessagesReadEvent)
	if !ok {
		return
	}
	switch ev.ReaderType {
	case protocol.SenderStudent:
		m.timeline.MarkRead(ev.ChatID, m.identity.OperatorID)
	case protocol.SenderOperator:
		// Idempotent reconciliation of the optimistic MarkRead.
		m.roster.ZeroUnread(ev.ChatID)
		m.rosterChanged()
	}
}

// handleUserStatus tracks student connectivity per chat.
func (m *Manager) handleUserStatus(msg interface{}) {
	ev, ok := msg.(protocol.UserStatusEvent)
	if !ok {
		return
	}
	if ev.UserType != protocol.SenderStudent {
		return
	}
	m.tracker.SetStudentStatus(ev.ChatID, ev.Status)
}

// handleMessagesDelivered advances not-yet-read operator messages to
// delivered.
func (m *Manager) handleMessagesDelivered(msg interface{}) {
	ev, ok := msg.(protocol.MessagesDeliveredEvent)
	if !ok {
		return
	}
	if ev.UserType != protocol.SenderStudent {
		return
	}
	m.timeline.MarkDelivered(ev.ChatID, m.identity.OperatorID)
}

// handleChatClosed transitions the chat to its terminal status. The chat
// stays in the roster; only its status changes. Local state never reaches a
// closed status by any other path.
func (m *Manager) handleChatClosed(msg interface{}) {
	ev, ok := msg.(protocol.ChatClosedEvent)
	if !ok {
		return
	}

	status := protocol.StatusClosedByCounsellor
	if ev.ClosedBy == protocol.ClosedByStudent {
		status = protocol.StatusClosedByStudent
	}
	m.roster.SetStatus(ev.ChatID, status)
	m.tracker.Reset(ev.ChatID)

	if ev.ClosedBy == protocol.ClosedByStudent {
		m.notifier.ChatClosedByStudent(ev.ChatID)
	}
	if m.onChatClosed != nil {
		if chat, ok := m.roster.Get(ev.ChatID); ok {
			m.onChatClosed(chat, m.timeline.Get(ev.ChatID))
		}
	}
	m.rosterChanged()
}

// handleTypingStatus tracks the student's typing indicator per chat.
func (m *Manager) handleTypingStatus(msg interface{}) {
	ev, ok := msg.(protocol.TypingStatusEvent)
	if !ok {
		return
	}
	if ev.UserType != protocol.SenderStudent {
		return
	}
	m.tracker.SetTyping(ev.ChatID, ev.IsTyping)
}
