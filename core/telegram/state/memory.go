package state

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process memory. Sessions expire after ttl
// without updates; a zero ttl keeps them forever.
type MemoryStore struct {
	items *cache.Cache
	ttl   time.Duration
}

// NewMemoryStore constructs an in-memory Store for tests and development.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	exp := ttl
	if exp <= 0 {
		exp = cache.NoExpiration
	}
	cleanup := exp
	if cleanup == cache.NoExpiration || cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	return &MemoryStore{items: cache.New(exp, cleanup), ttl: exp}
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(_ context.Context, userID int64) (*Session, error) {
	raw, ok := m.items.Get(memoryKey(userID))
	if !ok {
		return &Session{UserID: userID}, nil
	}
	return decodeSession(userID, raw.([]byte))
}

// Save stores a copy of s, or forgets the user when the stack is empty.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	key := memoryKey(s.UserID)
	if s.Empty() {
		m.items.Delete(key)
		return nil
	}
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	m.items.Set(key, data, m.ttl)
	return nil
}

func memoryKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
