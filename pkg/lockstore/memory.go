package lockstore

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process lock store with the same semantics as Redis.
// Expiry is evaluated lazily against the injected clock.
type Memory struct {
	mu    sync.Mutex
	locks map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock lets tests move time forward past a TTL
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		locks: make(map[string]entry),
		now:   now,
	}
}

// live returns the unexpired entry for key. Caller holds mu.
func (m *Memory) live(key string) (entry, bool) {
	e, ok := m.locks[key]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.locks, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) Acquire(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.live(key); held {
		return false, nil
	}
	m.locks[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return true, nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	return e.value, ok, nil
}

func (m *Memory) Release(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok || e.value != value {
		return false, nil
	}
	delete(m.locks, key)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, key)
	return nil
}

func (m *Memory) Close() error { return nil }
