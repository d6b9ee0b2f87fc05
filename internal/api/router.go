// Package api exposes the operator console state over HTTP for the
// counselling dashboard frontend. All conversation state lives in the
// session manager; this layer only translates requests.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// Console is the slice of the session manager the HTTP layer needs.
type Console interface {
	Connected() bool
	Roster() []protocol.Chat
	Messages(chatID string) []protocol.ChatMessage
	Active() string
	StudentOnline(chatID string) bool
	StudentTyping(chatID string) bool

	Select(ctx context.Context, chatID string) error
	Deselect()
	SendMessage(chatID, content string) error
	Keystroke(chatID string)
	MarkRead(chatID string)
	CloseChat(ctx context.Context, chatID string) error
}

// response mirrors the CRM backend's envelope so the dashboard can share
// one decoding path for both services.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type chatView struct {
	Chat          protocol.Chat `json:"chat"`
	Active        bool          `json:"active"`
	StudentOnline bool          `json:"studentOnline"`
	StudentTyping bool          `json:"studentTyping"`
}

// Server routes dashboard requests onto a Console.
type Server struct {
	console Console
	router  chi.Router
}

// NewServer builds the router. allowedOrigins feeds the CORS middleware;
// an empty list allows any origin, which suits local dashboard development.
func NewServer(console Console, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	s := &Server{console: console}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/roster", s.handleRoster)
		r.Post("/deselect", s.handleDeselect)
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/", s.handleChat)
			r.Get("/messages", s.handleMessages)
			r.Post("/select", s.handleSelect)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/read", s.handleMarkRead)
			r.Post("/typing", s.handleTyping)
			r.Post("/close", s.handleClose)
		})
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "degraded"
	code := http.StatusServiceUnavailable
	if s.console.Connected() {
		status = "ok"
		code = http.StatusOK
	}
	writeJSON(w, code, response{Success: s.console.Connected(), Message: status})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: s.console.Roster()})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	for _, chat := range s.console.Roster() {
		if chat.ID != chatID {
			continue
		}
		writeJSON(w, http.StatusOK, response{Success: true, Data: chatView{
			Chat:          chat,
			Active:        s.console.Active() == chatID,
			StudentOnline: s.console.StudentOnline(chatID),
			StudentTyping: s.console.StudentTyping(chatID),
		}})
		return
	}
	writeJSON(w, http.StatusNotFound, response{Success: false, Message: "chat not found"})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	writeJSON(w, http.StatusOK, response{Success: true, Data: s.console.Messages(chatID)})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := s.console.Select(r.Context(), chatID); err != nil {
		// Selection stuck: the chat is active but the backfill failed.
		writeJSON(w, http.StatusBadGateway, response{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: s.console.Messages(chatID)})
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.console.Deselect()
	writeJSON(w, http.StatusOK, response{Success: true})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}
	if err := s.console.SendMessage(chatID, req.Content); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, response{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, response{Success: true})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	s.console.MarkRead(chi.URLParam(r, "chatID"))
	writeJSON(w, http.StatusOK, response{Success: true})
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	s.console.Keystroke(chi.URLParam(r, "chatID"))
	writeJSON(w, http.StatusOK, response{Success: true})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := s.console.CloseChat(r.Context(), chatID); err != nil {
		writeJSON(w, http.StatusBadGateway, response{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true})
}

func writeJSON(w http.ResponseWriter, code int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[api] write response: %v", err)
	}
}
