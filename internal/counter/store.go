// Package counter provides the TTL-windowed key-value store that backs
// every fraud heuristic and cache. Counters expire silently; a key that is
// absent after its TTL reads as zero, never as an error.
package counter

import (
	"context"
	"time"
)

// Store is the windowed counter store. All operations are atomic per key
// under concurrent callers; TTL expiry is the only removal mechanism.
type Store interface {
	// Get returns the value for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Increment atomically adds 1 to the integer at key and returns the
	// new value. A missing key is created at 1 with the given ttl; an
	// existing key keeps its remaining TTL.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Expire refreshes the TTL of key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// ListAppendTrim appends value to the list at key, keeps the last
	// maxLen entries, refreshes the ttl, and returns the resulting list.
	ListAppendTrim(ctx context.Context, key, value string, maxLen int64, ttl time.Duration) ([]string, error)

	// CountPrefix returns the number of live keys starting with prefix.
	CountPrefix(ctx context.Context, prefix string) (int64, error)
}
