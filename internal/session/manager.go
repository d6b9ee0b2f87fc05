// Package session implements the operator chat session: one socket connection
// per authenticated operator, the event-driven state machine that keeps the
// roster, timelines, and presence in sync with server pushes, and the small
// outbound action surface the dashboard calls. All state mutation happens in
// reaction to either a UI action or an inbound event, processed one at a
// time per chat stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/counseldesk/operator-console/internal/metrics"
	"github.com/counseldesk/operator-console/internal/notify"
	"github.com/counseldesk/operator-console/internal/opsocket"
	"github.com/counseldesk/operator-console/internal/presence"
	"github.com/counseldesk/operator-console/internal/protocol"
	"github.com/counseldesk/operator-console/internal/roster"
	"github.com/counseldesk/operator-console/internal/timeline"
)

// Transport is the socket connection the session owns. opsocket.Client is the
// production implementation; tests drive the manager with a fake.
type Transport interface {
	On(eventType string, handler opsocket.EventHandler)
	OnConnect(fn func())
	OnDisconnect(fn func())
	Connect(ctx context.Context) error
	Send(eventType string, payload interface{}) error
	Connected() bool
	Close() error
}

// ChatAPI is the REST collaborator used for history backfill and chat close.
type ChatAPI interface {
	History(ctx context.Context, chatID string) ([]protocol.ChatMessage, error)
	Close(ctx context.Context, chatID, operatorID, role string) error
}

// Identity binds the session to one authenticated operator.
type Identity struct {
	OperatorID string
	Name       string
	Role       string
}

// Manager owns the operator session. Create with New, then Start exactly
// once; Stop tears the transport down exactly once and no event handler
// fires afterward.
type Manager struct {
	identity  Identity
	transport Transport
	api       ChatAPI
	notifier  notify.Notifier

	roster   *roster.Roster
	timeline *timeline.Store
	tracker  *presence.Tracker
	typing   *presence.TypingDebouncer

	// activeChatID is the single pointer bridging UI intent and the event
	// handlers. Handlers are registered once at connection time, so they
	// read the current selection through this guarded cell rather than a
	// value captured at registration.
	activeMu     sync.Mutex
	activeChatID string

	historyTimeout time.Duration
	connects       atomic.Int64

	onRosterChange func(chats []protocol.Chat)
	onChatClosed   func(chat protocol.Chat, msgs []protocol.ChatMessage)

	started atomic.Bool
	stopped atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the sink for chat_created and student-close
// notifications. Defaults to the log notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithTypingIdle overrides the quiet period for the typing debouncer.
func WithTypingIdle(d time.Duration) Option {
	return func(m *Manager) {
		m.typing = presence.NewTypingDebouncer(d, m.emitTyping)
	}
}

// WithHistoryTimeout bounds each history backfill request.
func WithHistoryTimeout(d time.Duration) Option {
	return func(m *Manager) { m.historyTimeout = d }
}

// WithRosterListener registers a callback invoked with a roster copy after
// every roster mutation. Used for the warm-start snapshot; must not block.
func WithRosterListener(fn func(chats []protocol.Chat)) Option {
	return func(m *Manager) { m.onRosterChange = fn }
}

// WithCloseListener registers a callback invoked when a chat reaches a
// terminal status, carrying the final summary and timeline. Used for
// transcript archiving; must not block.
func WithCloseListener(fn func(chat protocol.Chat, msgs []protocol.ChatMessage)) Option {
	return func(m *Manager) { m.onChatClosed = fn }
}

// New creates a Manager bound to the given identity and collaborators.
func New(identity Identity, transport Transport, api ChatAPI, opts ...Option) *Manager {
	m := &Manager{
		identity:       identity,
		transport:      transport,
		api:            api,
		notifier:       notify.LogNotifier{},
		roster:         roster.New(),
		timeline:       timeline.New(),
		tracker:        presence.NewTracker(),
		historyTimeout: 10 * time.Second,
	}
	m.typing = presence.NewTypingDebouncer(presence.DefaultTypingIdle, m.emitTyping)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers the event handlers and connects the transport. It fails if
// the identity has no operator id: an unauthenticated console never opens a
// connection.
func (m *Manager) Start(ctx context.Context) error {
	if m.identity.OperatorID == "" {
		return errors.New("session: operator id is required")
	}
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("session: already started")
	}

	m.registerHandlers()
	m.transport.OnConnect(m.announce)
	m.transport.OnDisconnect(func() {
		log.Printf("[session] transport down operator=%s; outbound actions degrade to no-ops", m.identity.OperatorID)
	})

	if err := m.transport.Connect(ctx); err != nil {
		return fmt.Errorf("session: connect: %w", err)
	}
	return nil
}

// Stop tears the session down. Safe to call multiple times.
func (m *Manager) Stop() error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}
	m.typing.StopAll()
	return m.transport.Close()
}

// announce runs on every successful connection. The two join events are
// idempotent on the server, which answers with a chat_list_update full sync —
// the only recovery mechanism for events lost across a disconnect gap.
func (m *Manager) announce() {
	if m.connects.Add(1) > 1 {
		metrics.Reconnects.Inc()
	}

	m.send(protocol.TypeOperatorJoin, protocol.OperatorJoinMsg{
		OperatorID: m.identity.OperatorID,
		Name:       m.identity.Name,
	})
	m.send(protocol.TypeJoinDashboard, protocol.JoinDashboardMsg{
		OperatorID: m.identity.OperatorID,
		Role:       m.identity.Role,
	})

	// Re-join the open conversation so read receipts keep flowing.
	if active := m.Active(); active != "" {
		m.send(protocol.TypeJoinChat, protocol.JoinChatMsg{ChatID: active})
	}
}

// SeedRoster pre-populates the roster before Start, e.g. from a warm-start
// snapshot. The first chat_list_update replaces it wholesale.
func (m *Manager) SeedRoster(chats []protocol.Chat) {
	m.roster.Replace(chats)
	m.rosterChanged()
}

// Active returns the id of the currently open conversation, or "".
func (m *Manager) Active() string {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return m.activeChatID
}

// setActive swaps the selection pointer.
func (m *Manager) setActive(chatID string) {
	m.activeMu.Lock()
	m.activeChatID = chatID
	m.activeMu.Unlock()
}

// ActiveChat resolves the selection pointer against the roster so the window
// always renders the latest summary. This is a read-model projection, not a
// fetch.
func (m *Manager) ActiveChat() (protocol.Chat, bool) {
	active := m.Active()
	if active == "" {
		return protocol.Chat{}, false
	}
	return m.roster.Get(active)
}

// Roster returns a copy of the roster in display order.
func (m *Manager) Roster() []protocol.Chat {
	return m.roster.List()
}

// Messages returns a copy of a chat's timeline.
func (m *Manager) Messages(chatID string) []protocol.ChatMessage {
	return m.timeline.Get(chatID)
}

// StudentOnline reports the last known student presence for a chat.
func (m *Manager) StudentOnline(chatID string) bool {
	return m.tracker.StudentOnline(chatID)
}

// StudentTyping reports whether the student is typing in a chat.
func (m *Manager) StudentTyping(chatID string) bool {
	return m.tracker.Typing(chatID)
}

// Connected reports whether the transport currently has a live connection.
func (m *Manager) Connected() bool {
	return m.transport.Connected()
}

// send emits one event, treating a down transport as a silent no-op per the
// failure taxonomy. Other transport errors are logged; no outbound action in
// this subsystem is retried automatically.
func (m *Manager) send(eventType string, payload interface{}) {
	err := m.transport.Send(eventType, payload)
	if err == nil {
		return
	}
	if errors.Is(err, opsocket.ErrNotConnected) {
		return
	}
	log.Printf("[session] send %s failed: %v", eventType, err)
}

// emitTyping is the debouncer's emit callback.
func (m *Manager) emitTyping(chatID string, isTyping bool) {
	m.send(protocol.TypeTyping, protocol.TypingMsg{
		ChatID:   chatID,
		UserType: protocol.SenderOperator,
		IsTyping: isTyping,
	})
}

// rosterChanged refreshes the derived gauges and notifies the listener.
func (m *Manager) rosterChanged() {
	metrics.RosterSize.Set(float64(m.roster.Len()))
	metrics.UnreadTotal.Set(float64(m.roster.TotalUnread()))
	if m.onRosterChange != nil {
		m.onRosterChange(m.roster.List())
	}
}

// trimContent normalizes outbound message content.
func trimContent(content string) string {
	return strings.TrimSpace(content)
}

// newMessageID mints a client-side message id.
func newMessageID() string {
	return uuid.New().String()
}
