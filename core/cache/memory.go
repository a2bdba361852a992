package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// memoryCache is the single-process fallback used when redis is not configured.
type memoryCache struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

func NewMemoryCache() Cache {
	return &memoryCache{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

func (c *memoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if held, ok := c.locks[key]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	c.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (c *memoryCache) Unlock(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held, ok := c.locks[key]; ok && held.token == token {
		delete(c.locks, key)
	}
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) Close() error { return nil }
