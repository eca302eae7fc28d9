// Package provider defines the byte-store abstraction behind entcache.Store.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). Framing and type tagging are owned by
// entcache; a provider only moves opaque bytes.
//
// Counters are the one exception: IncrBy works on provider-native integer
// counters that are never framed. Reading a counter key through Get yields bytes
// that entcache will not decode, so it reports a miss.
package provider

import (
	"context"
	"time"
)

// Item is one entry of a SetMulti batch.
type Item struct {
	Key   string
	Value []byte
	Cost  int64
}

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetMulti returns hits only; missing keys are absent from the map.
	// An error is reserved for transport failures.
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores value with the given TTL (<= 0 means no expiry). May ignore
	// cost if unsupported. Returns ok=false when the store rejected the write
	// under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// SetMulti stores every item with the same TTL. It is not atomic across
	// keys: on failure some items may be stored (possibly without TTL).
	SetMulti(ctx context.Context, items []Item, ttl time.Duration) error

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// DelMulti removes many keys in as few round trips as the store allows.
	DelMulti(ctx context.Context, keys []string) error

	// IncrBy adds delta to the counter at key, creating it at 0 first when
	// missing. ok=false means the key holds something that is not a counter.
	IncrBy(ctx context.Context, key string, delta int64) (n int64, ok bool, err error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// StatsProvider is implemented by providers that can report their own
// hit/miss counters.
type StatsProvider interface {
	Stats(ctx context.Context) (hits, misses uint64, err error)
}
