package roster

import (
	"testing"
	"time"

	"github.com/counseldesk/operator-console/internal/protocol"
)

func chat(id, studentID, name string) protocol.Chat {
	return protocol.Chat{
		ID:          id,
		StudentID:   studentID,
		StudentName: name,
		Status:      protocol.StatusOpen,
	}
}

func TestUpsertFront_NewChatsPrepend(t *testing.T) {
	r := New()

	r.UpsertFront(chat("c1", "s1", "Asha"))
	r.UpsertFront(chat("c2", "s2", "Ravi"))
	r.UpsertFront(chat("c3", "s3", "Meera"))

	got := r.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 chats, got %d", len(got))
	}
	// Most recent first.
	for i, want := range []string{"c3", "c2", "c1"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, got[i].ID)
		}
	}
}

func TestUpsertFront_PromotesByStudentID(t *testing.T) {
	r := New()
	// Roster [A, B, C].
	r.Replace([]protocol.Chat{
		chat("a", "s1", "A"),
		chat("b", "s2", "B"),
		chat("c", "s3", "C"),
	})

	// Upsert for B's student with updated lastMessage.
	updated := chat("b", "s2", "B")
	updated.LastMessage = "hello again"
	replacedID, replaced := r.UpsertFront(updated)

	if !replaced {
		t.Fatal("expected existing entry to be replaced")
	}
	if replacedID != "b" {
		t.Errorf("expected replaced id %q, got %q", "b", replacedID)
	}

	got := r.List()
	for i, want := range []string{"b", "a", "c"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, got[i].ID)
		}
	}
	if got[0].LastMessage != "hello again" {
		t.Errorf("front entry should carry the updated lastMessage, got %q", got[0].LastMessage)
	}
}

func TestUpsertFront_ReturningStudentNewChatID(t *testing.T) {
	r := New()
	r.UpsertFront(chat("c1", "s1", "Asha"))
	r.UpsertFront(chat("c2", "s2", "Ravi"))

	// Same student, fresh conversation record.
	replacedID, replaced := r.UpsertFront(chat("c9", "s1", "Asha"))
	if !replaced {
		t.Fatal("expected the old conversation row to be replaced")
	}
	if replacedID != "c1" {
		t.Errorf("expected replaced id %q, got %q", "c1", replacedID)
	}

	got := r.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(got))
	}
	if got[0].ID != "c9" {
		t.Errorf("expected new record at front, got %q", got[0].ID)
	}
}

func TestPatch(t *testing.T) {
	r := New()
	r.UpsertFront(chat("c1", "s1", "Asha"))
	r.UpsertFront(chat("c2", "s2", "Ravi"))

	updated := chat("c1", "s1", "Asha")
	updated.UnreadCountCounsellor = 4
	updated.LastMessage = "still there?"
	if !r.Patch(updated) {
		t.Fatal("expected patch to find c1")
	}

	got := r.List()
	// Patch keeps position: c2 stays in front.
	if got[0].ID != "c2" || got[1].ID != "c1" {
		t.Fatalf("patch should not reorder: got [%s, %s]", got[0].ID, got[1].ID)
	}
	if got[1].UnreadCountCounsellor != 4 {
		t.Errorf("expected unread 4, got %d", got[1].UnreadCountCounsellor)
	}

	if r.Patch(chat("ghost", "s9", "X")) {
		t.Error("patch of unknown chat should return false")
	}
}

func TestUnreadCounters(t *testing.T) {
	r := New()
	r.UpsertFront(chat("c1", "s1", "Asha"))

	r.IncrementUnread("c1")
	r.IncrementUnread("c1")
	if c, _ := r.Get("c1"); c.UnreadCountCounsellor != 2 {
		t.Fatalf("expected unread 2, got %d", c.UnreadCountCounsellor)
	}
	if r.TotalUnread() != 2 {
		t.Errorf("expected total unread 2, got %d", r.TotalUnread())
	}

	r.ZeroUnread("c1")
	if c, _ := r.Get("c1"); c.UnreadCountCounsellor != 0 {
		t.Errorf("expected unread 0 after zero, got %d", c.UnreadCountCounsellor)
	}
	// Idempotent.
	r.ZeroUnread("c1")
	if c, _ := r.Get("c1"); c.UnreadCountCounsellor != 0 {
		t.Errorf("zeroing twice should stay 0, got %d", c.UnreadCountCounsellor)
	}

	// Unknown chat is a no-op.
	r.IncrementUnread("ghost")
	r.ZeroUnread("ghost")
}

func TestSetLastMessageAndStatus(t *testing.T) {
	r := New()
	r.UpsertFront(chat("c1", "s1", "Asha"))

	at := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	r.SetLastMessage("c1", "see you", at)
	c, ok := r.Get("c1")
	if !ok {
		t.Fatal("c1 should exist")
	}
	if c.LastMessage != "see you" || !c.LastMessageAt.Equal(at) {
		t.Errorf("last message not updated: %+v", c)
	}

	r.SetStatus("c1", protocol.StatusClosedByStudent)
	c, _ = r.Get("c1")
	if !c.Closed() {
		t.Errorf("expected terminal status, got %q", c.Status)
	}
	// Closed chats are not removed.
	if r.Len() != 1 {
		t.Errorf("closed chat should stay in roster, len=%d", r.Len())
	}
}

func TestReplace(t *testing.T) {
	r := New()
	r.UpsertFront(chat("old", "s0", "Old"))

	r.Replace([]protocol.Chat{
		chat("c1", "s1", "Asha"),
		chat("c2", "s2", "Ravi"),
	})

	got := r.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 chats after replace, got %d", len(got))
	}
	if _, ok := r.Get("old"); ok {
		t.Error("full sync should drop entries absent from the server list")
	}
}

func TestListReturnsCopy(t *testing.T) {
	r := New()
	r.UpsertFront(chat("c1", "s1", "Asha"))

	got := r.List()
	got[0].StudentName = "mutated"

	if c, _ := r.Get("c1"); c.StudentName != "Asha" {
		t.Error("List must return a copy, internal state was mutated")
	}
}
