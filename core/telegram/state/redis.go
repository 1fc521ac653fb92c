package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis as JSON. Every save refreshes the TTL,
// so abandoned dialogs disappear on their own.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a store whose keys look like "<prefix>:<user id>".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "dialog"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(userID int64) string {
	return fmt.Sprintf("%s:%d", r.prefix, userID)
}

// Load reads the session of userID.
func (r *RedisStore) Load(ctx context.Context, userID int64) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Session{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: redis get: %w", err)
	}
	s, err := decodeSession(userID, data)
	if err != nil {
		return nil, fmt.Errorf("state: decode session: %w", err)
	}
	return s, nil
}

// Save writes s, or deletes the key when the stack is empty.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s.Empty() {
		if err := r.client.Del(ctx, r.key(s.UserID)).Err(); err != nil {
			return fmt.Errorf("state: redis del: %w", err)
		}
		return nil
	}
	data, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("state: redis set: %w", err)
	}
	return nil
}
