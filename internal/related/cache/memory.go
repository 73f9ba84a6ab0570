package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	ids       []int64
	expiresAt time.Time
}

// Memory is an in-process cache used when Redis is unavailable. Expired
// entries are dropped on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key, namespace string) ([]int64, bool, error) {
	full := namespacedKey(namespace, key)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[full]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, full)
		return nil, false, nil
	}
	return append([]int64(nil), e.ids...), true, nil
}

func (m *Memory) Set(_ context.Context, key, namespace string, ids []int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[namespacedKey(namespace, key)] = memoryEntry{
		ids:       append([]int64{}, ids...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, namespace string) (int64, error) {
	prefix := namespacedKey(namespace, "")
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
