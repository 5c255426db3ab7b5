package recordings

import (
	"context"
	"sync"
	"time"

	"wbor-twilio/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Claimer ensures at most one worker processes a call's recording at a time,
// across processes when backed by Redis.
type Claimer interface {
	Claim(ctx context.Context, callID string) (owner string, ok bool, err error)
	Release(ctx context.Context, callID, owner string) error
}

type RedisClaimer struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisClaimer(rdb *redis.Client, prefix string, ttl time.Duration) *RedisClaimer {
	if prefix == "" {
		prefix = "wbor-twilio:recording:"
	}
	return &RedisClaimer{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisClaimer) Claim(ctx context.Context, callID string) (string, bool, error) {
	owner := uuid.NewString()
	ok, err := utils.ClaimKey(ctx, c.rdb, c.prefix+callID, owner, c.ttl)
	if err != nil || !ok {
		return "", false, err
	}
	return owner, true, nil
}

func (c *RedisClaimer) Release(ctx context.Context, callID, owner string) error {
	return utils.ReleaseClaim(ctx, c.rdb, c.prefix+callID, owner)
}

// MemoryClaimer is the single-process fallback when Redis is not configured.
type MemoryClaimer struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryClaimer() *MemoryClaimer { return &MemoryClaimer{owners: map[string]string{}} }

func (c *MemoryClaimer) Claim(_ context.Context, callID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.owners[callID]; held {
		return "", false, nil
	}
	owner := uuid.NewString()
	c.owners[callID] = owner
	return owner, true, nil
}

func (c *MemoryClaimer) Release(_ context.Context, callID, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owners[callID] == owner {
		delete(c.owners, callID)
	}
	return nil
}
