package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/counseldesk/operator-console/internal/protocol"
)

type fakeConsole struct {
	connected bool
	roster    []protocol.Chat
	messages  map[string][]protocol.ChatMessage
	active    string

	selectErr error
	sendErr   error
	closeErr  error

	selected   []string
	sent       []string
	read       []string
	typed      []string
	closed     []string
	deselected int
}

func (f *fakeConsole) Connected() bool         { return f.connected }
func (f *fakeConsole) Roster() []protocol.Chat { return f.roster }
func (f *fakeConsole) Messages(chatID string) []protocol.ChatMessage {
	return f.messages[chatID]
}
func (f *fakeConsole) Active() string                   { return f.active }
func (f *fakeConsole) StudentOnline(chatID string) bool { return false }
func (f *fakeConsole) StudentTyping(chatID string) bool { return false }

func (f *fakeConsole) Select(ctx context.Context, chatID string) error {
	if f.selectErr != nil {
		return f.selectErr
	}
	f.selected = append(f.selected, chatID)
	return nil
}
func (f *fakeConsole) Deselect() { f.deselected++ }
func (f *fakeConsole) SendMessage(chatID, content string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, chatID+":"+content)
	return nil
}
func (f *fakeConsole) Keystroke(chatID string) { f.typed = append(f.typed, chatID) }
func (f *fakeConsole) MarkRead(chatID string)  { f.read = append(f.read, chatID) }
func (f *fakeConsole) CloseChat(ctx context.Context, chatID string) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closed = append(f.closed, chatID)
	return nil
}

func doRequest(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var resp response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, resp
}

func TestHealthzReflectsSocketState(t *testing.T) {
	console := &fakeConsole{connected: true}
	s := NewServer(console, nil)

	rec, resp := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Errorf("connected console should be healthy: code=%d resp=%+v", rec.Code, resp)
	}

	console.connected = false
	rec, resp = doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable || resp.Success {
		t.Errorf("disconnected console should report degraded: code=%d resp=%+v", rec.Code, resp)
	}
}

func TestRosterEndpoint(t *testing.T) {
	console := &fakeConsole{roster: []protocol.Chat{
		{ID: "c1", StudentID: "42", StudentName: "Asha", Status: protocol.StatusOpen},
	}}
	s := NewServer(console, nil)

	rec, resp := doRequest(t, s, http.MethodGet, "/api/roster", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("roster: code=%d resp=%+v", rec.Code, resp)
	}
	raw, _ := json.Marshal(resp.Data)
	var chats []protocol.Chat
	if err := json.Unmarshal(raw, &chats); err != nil {
		t.Fatalf("roster payload: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != "c1" {
		t.Errorf("unexpected roster payload: %+v", chats)
	}
}

func TestChatDetail(t *testing.T) {
	console := &fakeConsole{
		roster: []protocol.Chat{{ID: "c1", StudentID: "42", Status: protocol.StatusOpen}},
		active: "c1",
	}
	s := NewServer(console, nil)

	rec, _ := doRequest(t, s, http.MethodGet, "/api/chats/c1/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for known chat, got %d", rec.Code)
	}
	rec, resp := doRequest(t, s, http.MethodGet, "/api/chats/nope/", "")
	if rec.Code != http.StatusNotFound || resp.Success {
		t.Errorf("unknown chat should 404: code=%d resp=%+v", rec.Code, resp)
	}
}

func TestSelectEndpoint(t *testing.T) {
	console := &fakeConsole{messages: map[string][]protocol.ChatMessage{}}
	s := NewServer(console, nil)

	rec, _ := doRequest(t, s, http.MethodPost, "/api/chats/c1/select", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("select: %d", rec.Code)
	}
	if len(console.selected) != 1 || console.selected[0] != "c1" {
		t.Errorf("expected select call for c1, got %v", console.selected)
	}

	console.selectErr = errors.New("history fetch failed")
	rec, resp := doRequest(t, s, http.MethodPost, "/api/chats/c1/select", "")
	if rec.Code != http.StatusBadGateway || resp.Success {
		t.Errorf("failed select should 502: code=%d resp=%+v", rec.Code, resp)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	console := &fakeConsole{}
	s := NewServer(console, nil)

	rec, _ := doRequest(t, s, http.MethodPost, "/api/chats/c1/messages", `{"content":"hello"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("send: %d", rec.Code)
	}
	if len(console.sent) != 1 || console.sent[0] != "c1:hello" {
		t.Errorf("expected send call, got %v", console.sent)
	}

	rec, _ = doRequest(t, s, http.MethodPost, "/api/chats/c1/messages", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body should 400, got %d", rec.Code)
	}

	console.sendErr = errors.New("message content is empty")
	rec, resp := doRequest(t, s, http.MethodPost, "/api/chats/c1/messages", `{"content":" "}`)
	if rec.Code != http.StatusUnprocessableEntity || resp.Success {
		t.Errorf("invalid content should 422: code=%d resp=%+v", rec.Code, resp)
	}
}

func TestActionEndpoints(t *testing.T) {
	console := &fakeConsole{}
	s := NewServer(console, nil)

	doRequest(t, s, http.MethodPost, "/api/chats/c1/read", "")
	doRequest(t, s, http.MethodPost, "/api/chats/c1/typing", "")
	doRequest(t, s, http.MethodPost, "/api/deselect", "")

	if len(console.read) != 1 || len(console.typed) != 1 || console.deselected != 1 {
		t.Errorf("action calls not routed: read=%v typed=%v deselected=%d",
			console.read, console.typed, console.deselected)
	}
}

func TestCloseEndpoint(t *testing.T) {
	console := &fakeConsole{}
	s := NewServer(console, nil)

	rec, _ := doRequest(t, s, http.MethodPost, "/api/chats/c1/close", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("close: %d", rec.Code)
	}
	if len(console.closed) != 1 {
		t.Errorf("expected close call, got %v", console.closed)
	}

	console.closeErr = errors.New("backend down")
	rec, resp := doRequest(t, s, http.MethodPost, "/api/chats/c1/close", "")
	if rec.Code != http.StatusBadGateway || resp.Success {
		t.Errorf("failed close should 502: code=%d resp=%+v", rec.Code, resp)
	}
}
