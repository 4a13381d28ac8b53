package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// MemoryCache is an in-process BalanceCache for tests and local development.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

// NewMemoryCache creates an in-memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, walletID string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[walletID]
	if !ok || time.Now().After(e.expiresAt) {
		return Snapshot{}, false
	}
	return e.snap, true
}

func (c *MemoryCache) Set(_ context.Context, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[snap.WalletID] = memoryEntry{snap: snap, expiresAt: time.Now().Add(c.ttl)}
}

func (c *MemoryCache) Invalidate(_ context.Context, walletID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, walletID)
}
