// Package protocol defines the socket event types and structures exchanged
// between the operator console and the chat server. All events are serialized
// as JSON and follow a consistent envelope format with a type discriminator.
// Field names on the wire are fixed by the CRM server's contract.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event type constants
// ---------------------------------------------------------------------------

// Console -> Server event types.
const (
	TypeOperatorJoin  = "operator_join"
	TypeJoinDashboard = "join_dashboard"
	TypeJoinChat      = "join_chat"
	TypeSendMessage   = "send_message"
	TypeTyping        = "typing"
	TypeMarkRead      = "mark_read"
)

// Server -> Console event types.
const (
	TypeChatListUpdate    = "chat_list_update"
	TypeChatAssigned      = "chat_assigned"
	TypeChatCreated       = "chat_created"
	TypeChatUpdated       = "chat_updated"
	TypeNewMessage        = "new_message"
	TypeMessagesRead      = "messages_read"
	TypeUserStatus        = "user_status"
	TypeMessagesDelivered = "messages_delivered"
	TypeChatClosed        = "chat_closed"
	TypeTypingStatus      = "typing_status"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the event type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw event for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Console -> Server event structs
// ---------------------------------------------------------------------------

// OperatorJoinMsg announces the operator's presence after connecting. The
// server treats repeated announcements as idempotent.
type OperatorJoinMsg struct {
	Type       string `json:"type"`
	OperatorID string `json:"operatorId"`
	Name       string `json:"name"`
}

// JoinDashboardMsg registers the operator on the live dashboard channel,
// carrying the resolved role. Idempotent on the server side.
type JoinDashboardMsg struct {
	Type       string `json:"type"`
	OperatorID string `json:"operatorId"`
	Role       string `json:"role"`
}

// JoinChatMsg subscribes the operator to a chat room so that read receipts
// are attributed to the open conversation.
type JoinChatMsg struct {
	Type   string `json:"type"`
	ChatID string `json:"chatId"`
}

// SendMessageMsg carries an operator-authored message into a chat.
type SendMessageMsg struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	ChatID     string `json:"chatId"`
	Content    string `json:"content"`
	SenderType string `json:"senderType"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
}

// TypingMsg signals whether the operator is currently typing in a chat.
type TypingMsg struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId"`
	UserType string `json:"userType"`
	IsTyping bool   `json:"isTyping"`
}

// MarkReadMsg emits a read receipt for every unread student message in the
// chat.
type MarkReadMsg struct {
	Type       string `json:"type"`
	ChatID     string `json:"chatId"`
	OperatorID string `json:"operatorId"`
}

// ---------------------------------------------------------------------------
// Server -> Console event structs
// ---------------------------------------------------------------------------

// ChatListUpdateEvent replaces the entire roster with an authoritative list.
// The server sends it sparingly, e.g. after a reconnect.
type ChatListUpdateEvent struct {
	Type  string `json:"type"`
	Chats []Chat `json:"chats"`
}

// ChatAssignedEvent announces that a chat has been assigned to this operator.
type ChatAssignedEvent struct {
	Type string `json:"type"`
	Chat Chat   `json:"chat"`
}

// ChatCreatedEvent announces a newly created student conversation.
type ChatCreatedEvent struct {
	Type string `json:"type"`
	Chat Chat   `json:"chat"`
}

// ChatUpdatedEvent carries the server's updated view of an existing chat.
type ChatUpdatedEvent struct {
	Type string `json:"type"`
	Chat Chat   `json:"chat"`
}

// NewMessageEvent carries one message appended to a chat's timeline. Delivery
// is at-least-once; consumers must dedupe by message id.
type NewMessageEvent struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

// MessagesReadEvent announces that a participant has read the chat. The
// readerType determines the effect: a Student reading marks the operator's
// own messages read, an Operator reading zeroes the unread counter.
type MessagesReadEvent struct {
	Type       string `json:"type"`
	ChatID     string `json:"chatId"`
	ReaderType string `json:"readerType"`
}

// UserStatusEvent reports a participant going online or offline.
type UserStatusEvent struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId"`
	UserType string `json:"userType"`
	Status   string `json:"status"`
}

// MessagesDeliveredEvent announces that pending operator messages reached the
// participant's device. Delivered is a checkpoint strictly weaker than read.
type MessagesDeliveredEvent struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId"`
	UserType string `json:"userType"`
}

// ChatClosedEvent marks a conversation closed by one of its participants.
type ChatClosedEvent struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId"`
	ClosedBy string `json:"closedBy"`
}

// TypingStatusEvent relays a participant's typing indicator.
type TypingStatusEvent struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId"`
	UserType string `json:"userType"`
	IsTyping bool   `json:"isTyping"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseServerEvent parses raw socket bytes into a typed server event. It
// returns the event type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// console-only event types.
func ParseServerEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse event: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeChatListUpdate:
		var m ChatListUpdateEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatAssigned:
		var m ChatAssignedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatCreated:
		var m ChatCreatedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatUpdated:
		var m ChatUpdatedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeNewMessage:
		var m NewMessageEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessagesRead:
		var m MessagesReadEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUserStatus:
		var m UserStatusEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessagesDelivered:
		var m MessagesDeliveredEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatClosed:
		var m ChatClosedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTypingStatus:
		var m TypingStatusEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown server event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewClientEvent creates a JSON-encoded byte slice for a console event. The
// msgType is injected into the payload under the "type" key. The payload
// should be one of the console event structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewClientEvent(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal client event: %w", err)
	}
	return out, nil
}
