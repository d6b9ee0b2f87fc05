package presence

import (
	"sync"
	"time"
)

// DefaultTypingIdle is the quiet period after the last keystroke before a
// typing=false indicator is emitted.
const DefaultTypingIdle = 2 * time.Second

// TypingDebouncer converts raw keystroke notifications into the typing
// protocol the server expects: typing=true is emitted once at the start of a
// burst, typing=false after the idle period with no keystrokes. The pending
// idle timer is cancelled before every reschedule so a stale typing=false can
// never fire after a new burst has started.
type TypingDebouncer struct {
	mu     sync.Mutex
	idle   time.Duration
	emit   func(chatID string, isTyping bool)
	timers map[string]*time.Timer
	active map[string]bool
}

// NewTypingDebouncer creates a debouncer that calls emit for every state
// change. If idle is zero, DefaultTypingIdle is used.
func NewTypingDebouncer(idle time.Duration, emit func(chatID string, isTyping bool)) *TypingDebouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingDebouncer{
		idle:   idle,
		emit:   emit,
		timers: make(map[string]*time.Timer),
		active: make(map[string]bool),
	}
}

// Keystroke records operator input in a chat. The first keystroke of a burst
// emits typing=true; every keystroke pushes the idle deadline out.
func (d *TypingDebouncer) Keystroke(chatID string) {
	d.mu.Lock()

	if t, ok := d.timers[chatID]; ok {
		t.Stop()
	}
	first := !d.active[chatID]
	d.active[chatID] = true
	d.timers[chatID] = time.AfterFunc(d.idle, func() {
		d.expire(chatID)
	})

	d.mu.Unlock()

	if first {
		d.emit(chatID, true)
	}
}

// Stop ends the typing burst for a chat immediately, e.g. when the operator
// sends the message. Emits typing=false only if a burst was active.
func (d *TypingDebouncer) Stop(chatID string) {
	d.mu.Lock()
	if t, ok := d.timers[chatID]; ok {
		t.Stop()
		delete(d.timers, chatID)
	}
	wasActive := d.active[chatID]
	delete(d.active, chatID)
	d.mu.Unlock()

	if wasActive {
		d.emit(chatID, false)
	}
}

// StopAll cancels every pending burst without emitting, used on teardown when
// the transport is going away anyway.
func (d *TypingDebouncer) StopAll() {
	d.mu.Lock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
	d.active = make(map[string]bool)
	d.mu.Unlock()
}

// expire is the idle timer callback.
func (d *TypingDebouncer) expire(chatID string) {
	d.mu.Lock()
	wasActive := d.active[chatID]
	delete(d.active, chatID)
	delete(d.timers, chatID)
	d.mu.Unlock()

	if wasActive {
		d.emit(chatID, false)
	}
}
