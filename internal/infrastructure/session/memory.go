package session

import (
	"context"
	"sync"
	"time"

	"github.com/sewerwatch/portal/internal/core/ports"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryScope is an in-process Scope. With a positive TTL every key
// expires after that much idle time; each read renews it.
type MemoryScope struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ ports.Scope = (*MemoryScope)(nil)

func NewMemoryScope(ttl time.Duration) *MemoryScope {
	return &MemoryScope{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// lookup returns the live entry for key, dropping it when expired.
// Callers hold mu.
func (m *MemoryScope) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryScope) deadline() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

func (m *MemoryScope) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return "", false, nil
	}
	e.expires = m.deadline()
	m.entries[key] = e
	return e.value, true, nil
}

func (m *MemoryScope) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: m.deadline()}
	return nil
}

func (m *MemoryScope) CompareAndSwap(_ context.Context, key, old, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok || e.value != old {
		return false, nil
	}
	e.value = value
	m.entries[key] = e
	return true, nil
}

func (m *MemoryScope) CompareAndDelete(_ context.Context, key, old string, also ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok || e.value != old {
		return false, nil
	}
	delete(m.entries, key)
	for _, k := range also {
		delete(m.entries, k)
	}
	return true, nil
}

func (m *MemoryScope) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}
