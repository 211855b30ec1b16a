// Package cache holds the time-bounded key/value table behind the fetch gateway.
package cache

import (
	"context"
	"time"
)

//go:generate mockgen -package=mock -source=store.go -destination=mock/store.go

// Store is the cache table used by the fetch gateway.
// Implemented by the in-process memory and bounded stores and by Redis.
//
// Get never returns an expired entry. Set replaces any entry under key;
// a ttl <= 0 means "do not keep".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Clock returns the current time. Stores take one so expiry can be tested
// without sleeping.
type Clock func() time.Time

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
