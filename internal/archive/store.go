// Package archive provides PostgreSQL-backed retention of closed-chat
// transcripts. When a conversation reaches a terminal status the console
// persists the roster summary and the full message timeline (as JSONB) so
// counsellor admins can review it after the realtime state is gone.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// Store manages chat transcripts in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the connection, and applies pending
// schema migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: connect: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle without running migrations.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ArchiveTranscript persists a closed chat and its messages. Re-archiving the
// same chat is a no-op so a redelivered chat_closed event cannot duplicate
// rows.
func (s *Store) ArchiveTranscript(ctx context.Context, chat protocol.Chat, msgs []protocol.ChatMessage) error {
	if !chat.Closed() {
		return fmt.Errorf("archive: chat %s has non-terminal status %q", chat.ID, chat.Status)
	}

	var messagesJSON []byte
	if len(msgs) > 0 {
		var err error
		messagesJSON, err = json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("archive: marshal messages: %w", err)
		}
	}

	const query = `
		INSERT INTO chat_transcripts (chat_id, student_id, student_name, status, messages)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		chat.ID,
		chat.StudentID,
		chat.StudentName,
		chat.Status,
		messagesJSON,
	)
	if err != nil {
		return fmt.Errorf("archive: insert transcript chat=%s: %w", chat.ID, err)
	}
	return nil
}

// CountForStudent returns the number of archived conversations for a student
// within the given time window. Counsellor admin uses it to spot students who
// keep reopening chats.
func (s *Store) CountForStudent(ctx context.Context, studentID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM chat_transcripts
		WHERE student_id = $1
		  AND closed_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, studentID, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("archive: count for student: %w", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
