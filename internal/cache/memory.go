package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a map-backed Store with lazy expiry on read and a background
// sweeper that drops expired entries to bound memory under sustained load.
type Memory struct {
	mu              sync.RWMutex
	items           map[string]entry
	now             Clock
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now Clock) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-memory store.
// A cleanupInterval <= 0 falls back to 5 minutes.
func NewMemory(cleanupInterval time.Duration, opts ...MemoryOption) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	m := &Memory{
		items:           make(map[string]entry),
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.cleanupExpired()

	return m
}

// Get returns a copy of the value under key if it has not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := m.now()
	if e.expired(now) {
		m.mu.Lock()
		if cur, exists := m.items[key]; exists && cur.expired(now) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}

	return cloneBytes(e.value), true, nil
}

// Set stores a copy of value until now+ttl. A ttl <= 0 removes the key.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil
	}

	e := entry{
		value:     cloneBytes(value),
		expiresAt: m.now().Add(ttl),
	}

	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()

	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) cleanupExpired() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCleanup:
			return
		}
	}
}

// sweep removes every expired entry and reports how many were dropped.
func (m *Memory) sweep() int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			removed++
		}
	}
	m.mu.Unlock()

	return removed
}

// Close stops the sweeper goroutine. Call this on shutdown or in tests.
func (m *Memory) Close() error {
	m.cleanupOnce.Do(func() {
		close(m.stopCleanup)
	})
	return nil
}

// Len returns the number of physically present entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	m.items = make(map[string]entry)
	m.mu.Unlock()
}
