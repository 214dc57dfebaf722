package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryTier is a process-local TTL cache. It stands in for the Redis tier in
// single-instance deployments and in tests; the chain semantics are identical.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string]memoryEntry)}
}

func (t *MemoryTier) Name() string { return "memory" }

func (t *MemoryTier) TryGet(_ context.Context, key string) ([]byte, bool) {
	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		t.mu.Lock()
		delete(t.entries, key)
		t.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (t *MemoryTier) TrySet(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (t *MemoryTier) TryDelete(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

func (t *MemoryTier) Health(context.Context) error { return nil }
