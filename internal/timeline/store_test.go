package timeline

import (
	"fmt"
	"testing"

	"github.com/counseldesk/operator-console/internal/protocol"
)

func studentMsg(id, chatID, text string) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:         id,
		ChatID:     chatID,
		SenderType: protocol.SenderStudent,
		SenderID:   "s42",
		Content:    text,
	}
}

func operatorMsg(id, chatID, text string) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:         id,
		ChatID:     chatID,
		SenderType: protocol.SenderOperator,
		SenderID:   "op1",
		Content:    text,
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	s := New()

	s.Append(studentMsg("m1", "c1", "hi"))
	s.Append(operatorMsg("m2", "c1", "hello, how can I help?"))
	s.Append(studentMsg("m3", "c1", "course fees?"))

	msgs := s.Get("c1")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, msgs[i].ID)
		}
	}
}

func TestAppendDedupesByID(t *testing.T) {
	s := New()

	if !s.Append(studentMsg("m1", "c1", "hi")) {
		t.Fatal("first append should succeed")
	}
	// At-least-once redelivery of the same event.
	if s.Append(studentMsg("m1", "c1", "hi")) {
		t.Fatal("duplicate append should be rejected")
	}
	if s.Append(studentMsg("m1", "c1", "different text, same id")) {
		t.Fatal("duplicate id should be rejected regardless of content")
	}

	if n := s.Len("c1"); n != 1 {
		t.Fatalf("expected exactly one copy, got %d", n)
	}
}

func TestReplaceWithHistorySnapshot(t *testing.T) {
	s := New()

	// Live pushes arrive before the history fetch completes.
	s.Append(studentMsg("m4", "c1", "are you there?"))

	// History snapshot taken after m4 was sent: contains m1..m4.
	history := []protocol.ChatMessage{
		studentMsg("m1", "c1", "hi"),
		operatorMsg("m2", "c1", "hello"),
		studentMsg("m3", "c1", "fees?"),
		studentMsg("m4", "c1", "are you there?"),
	}
	s.Replace("c1", history)

	msgs := s.Get("c1")
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages after replace, got %d", len(msgs))
	}

	// The push duplicating a history entry lands after the replace.
	if s.Append(studentMsg("m4", "c1", "are you there?")) {
		t.Fatal("push overlapping the snapshot must be deduped")
	}
	// A genuinely new push is accepted.
	if !s.Append(studentMsg("m5", "c1", "hello??")) {
		t.Fatal("new push after replace should append")
	}
	if n := s.Len("c1"); n != 5 {
		t.Fatalf("expected 5 messages, got %d", n)
	}
}

func TestReplaceDropsDuplicateSnapshotEntries(t *testing.T) {
	s := New()

	s.Replace("c1", []protocol.ChatMessage{
		studentMsg("m1", "c1", "hi"),
		studentMsg("m1", "c1", "hi"),
		studentMsg("m2", "c1", "again"),
	})
	if n := s.Len("c1"); n != 2 {
		t.Fatalf("expected snapshot dedupe to keep 2, got %d", n)
	}
}

func TestMarkRead(t *testing.T) {
	s := New()
	s.Append(operatorMsg("m1", "c1", "hello"))
	s.Append(studentMsg("m2", "c1", "hi"))
	s.Append(operatorMsg("m3", "c1", "any questions?"))

	changed := s.MarkRead("c1", "op1")
	if changed != 2 {
		t.Fatalf("expected 2 messages advanced, got %d", changed)
	}

	for _, m := range s.Get("c1") {
		switch m.SenderID {
		case "op1":
			if !m.IsRead || !m.IsDelivered {
				t.Errorf("operator message %s should be read and delivered", m.ID)
			}
		default:
			if m.IsRead || m.IsDelivered {
				t.Errorf("student message %s must not carry delivery state", m.ID)
			}
		}
	}

	// Idempotent reconciliation: the server echo is a no-op.
	if changed := s.MarkRead("c1", "op1"); changed != 0 {
		t.Errorf("second mark read should advance nothing, got %d", changed)
	}
}

func TestMarkDeliveredWeakerThanRead(t *testing.T) {
	s := New()
	s.Append(operatorMsg("m1", "c1", "hello"))
	s.Append(operatorMsg("m2", "c1", "still there?"))

	// m1 is already read; delivered must not touch it.
	s.MarkRead("c1", "op1")
	s.Append(operatorMsg("m3", "c1", "ping"))

	changed := s.MarkDelivered("c1", "op1")
	if changed != 1 {
		t.Fatalf("expected only the unread message to advance, got %d", changed)
	}

	msgs := s.Get("c1")
	if !msgs[0].IsRead {
		t.Error("delivered must never demote a read message")
	}
	if msgs[2].IsRead {
		t.Error("delivered must not promote a message to read")
	}
	if !msgs[2].IsDelivered {
		t.Error("unread operator message should now be delivered")
	}
}

func TestMonotonicFlags(t *testing.T) {
	s := New()
	s.Append(operatorMsg("m1", "c1", "hello"))
	s.MarkRead("c1", "op1")

	// Neither a later delivered checkpoint nor a repeat read may reverse state.
	s.MarkDelivered("c1", "op1")
	s.MarkRead("c1", "op1")

	m := s.Get("c1")[0]
	if !m.IsRead || !m.IsDelivered {
		t.Errorf("flags regressed: isRead=%v isDelivered=%v", m.IsRead, m.IsDelivered)
	}
}

func TestIndependentChats(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.Append(studentMsg(fmt.Sprintf("a%d", i), "c1", "x"))
		s.Append(studentMsg(fmt.Sprintf("b%d", i), "c2", "y"))
	}

	if s.Len("c1") != 3 || s.Len("c2") != 3 {
		t.Fatalf("per-chat counts wrong: c1=%d c2=%d", s.Len("c1"), s.Len("c2"))
	}
	s.Replace("c1", nil)
	if s.Len("c1") != 0 || s.Len("c2") != 3 {
		t.Error("replacing one chat must not affect another")
	}
}

func TestGetUnknownChat(t *testing.T) {
	s := New()
	msgs := s.Get("ghost")
	if msgs == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(msgs) != 0 {
		t.Fatalf("expected 0 messages, got %d", len(msgs))
	}
}
