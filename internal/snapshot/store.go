// Package snapshot persists the operator's roster to Redis so a restarted
// console renders the sidebar instantly instead of waiting for the socket's
// full sync. The snapshot is a warm-start hint only: the next
// chat_list_update replaces it wholesale, and every Redis failure is
// best-effort (logged, never fatal).
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/counseldesk/operator-console/internal/protocol"
)

const (
	// KeyPrefix is the Redis key prefix for roster snapshots.
	KeyPrefix = "roster:"

	// SnapshotTTL bounds how stale a warm-start roster may be.
	SnapshotTTL = 24 * time.Hour
)

// Store manages roster snapshots in Redis.
type Store struct {
	client *redis.Client
}

// NewStore connects to Redis and verifies the connection.
func NewStore(redisAddr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("snapshot: redis connection failed: %w", err)
	}

	return &Store{client: client}, nil
}

// Save stores the roster under roster:<operatorID> with a TTL refresh.
func (s *Store) Save(ctx context.Context, operatorID string, chats []protocol.Chat) error {
	data, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("snapshot: marshal roster: %w", err)
	}
	if err := s.client.Set(ctx, KeyPrefix+operatorID, data, SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("snapshot: save roster operator=%s: %w", operatorID, err)
	}
	return nil
}

// Load returns the stored roster for an operator, or nil if no snapshot
// exists.
func (s *Store) Load(ctx context.Context, operatorID string) ([]protocol.Chat, error) {
	data, err := s.client.Get(ctx, KeyPrefix+operatorID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: load roster operator=%s: %w", operatorID, err)
	}

	var chats []protocol.Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		return nil, fmt.Errorf("snapshot: decode roster operator=%s: %w", operatorID, err)
	}
	return chats, nil
}

// Clear removes an operator's snapshot.
func (s *Store) Clear(ctx context.Context, operatorID string) error {
	return s.client.Del(ctx, KeyPrefix+operatorID).Err()
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
