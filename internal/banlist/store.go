package banlist

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store holds numbers whose inbound texts are dropped.
type Store interface {
	Ban(ctx context.Context, number string) error
	Unban(ctx context.Context, number string) error
	IsBanned(ctx context.Context, number string) (bool, error)
}

const DefaultKey = "wbor-twilio:banned_numbers"

// RedisStore keeps the ban list in a Redis set so every replica sees it.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, key string) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("banlist: redis client is nil")
	}
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}, nil
}

func (s *RedisStore) Ban(ctx context.Context, number string) error {
	return s.rdb.SAdd(ctx, s.key, Normalize(number)).Err()
}

func (s *RedisStore) Unban(ctx context.Context, number string) error {
	return s.rdb.SRem(ctx, s.key, Normalize(number)).Err()
}

func (s *RedisStore) IsBanned(ctx context.Context, number string) (bool, error) {
	return s.rdb.SIsMember(ctx, s.key, Normalize(number)).Result()
}

// MemoryStore is the single-process fallback used when Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	numbers map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{numbers: map[string]struct{}{}}
}

func (s *MemoryStore) Ban(_ context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers[Normalize(number)] = struct{}{}
	return nil
}

func (s *MemoryStore) Unban(_ context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.numbers, Normalize(number))
	return nil
}

func (s *MemoryStore) IsBanned(_ context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.numbers[Normalize(number)]
	return ok, nil
}

// Normalize maps browser-decoded numbers (" 12075550111") and provider
// numbers ("+12075550111") onto the same key.
func Normalize(number string) string {
	n := strings.TrimSpace(number)
	n = strings.ReplaceAll(n, " ", "")
	if n != "" && !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return n
}
