package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// Bounded is an in-memory W-TinyLFU store backed by otter. It caps the number
// of entries; expiry is checked per entry on read.
type Bounded struct {
	cache *otter.Cache[string, entry]
	now   Clock
}

// NewBounded creates a store holding at most maxEntries keys.
// A nil clock means time.Now.
func NewBounded(maxEntries int, now Clock) (*Bounded, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("bounded cache: max entries must be positive, got %d", maxEntries)
	}
	c, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize: maxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bounded cache: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &Bounded{cache: c, now: now}, nil
}

func (b *Bounded) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := b.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(b.now()) {
		b.cache.Invalidate(key)
		return nil, false, nil
	}
	return cloneBytes(e.value), true, nil
}

func (b *Bounded) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		b.cache.Invalidate(key)
		return nil
	}
	b.cache.Set(key, entry{
		value:     cloneBytes(value),
		expiresAt: b.now().Add(ttl),
	})
	return nil
}

func (b *Bounded) Delete(_ context.Context, key string) error {
	b.cache.Invalidate(key)
	return nil
}

// Purge removes all entries.
func (b *Bounded) Purge() {
	b.cache.InvalidateAll()
}
