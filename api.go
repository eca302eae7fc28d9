package entcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/entcache/codec"
	pr "github.com/unkn0wn-root/entcache/provider"
)

type SetCostFunc func(key string, raw []byte) int64

// Stats are hit/miss counters. Backends that can report their own counters
// (redis INFO, ristretto metrics, bigcache stats) do so; otherwise the store
// counts its own lookups.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Store is the cache used by the write path. Operations are blocking network
// calls for remote backends; the *Multi variants amortize round trips.
//
// A ttl of 0 means no expiry; a negative ttl is rejected with ErrNegativeTTL
// before the backend is touched.
type Store interface {
	// Get reports (v, true, nil) on hit. Corrupt or version-incompatible
	// entries are misses, never errors.
	Get(ctx context.Context, key string) (v Value, ok bool, err error)
	// GetMulti returns hits only; missing keys are absent from the map.
	GetMulti(ctx context.Context, keys []string) (map[string]Value, error)

	Set(ctx context.Context, key string, v Value, ttl time.Duration) (ok bool, err error)
	// SetMulti is not atomic across keys. With ttl > 0 a partial failure may
	// leave some keys stored without expiry.
	SetMulti(ctx context.Context, items map[string]Value, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	DeleteMulti(ctx context.Context, keys []string) error

	// Incr and Decr work on backend-native counters, creating them at 0.
	// ok=false means the key holds a non-counter value (or there is no cache).
	Incr(ctx context.Context, key string, delta int64) (n int64, ok bool, err error)
	Decr(ctx context.Context, key string, delta int64) (n int64, ok bool, err error)

	// Stats returns ok=false when the backend cannot report counters.
	Stats(ctx context.Context) (s Stats, ok bool)

	// Encoder converts Go values to Values using this store's blob codec.
	Encoder() Encoder

	Close(ctx context.Context) error
}

// Options configure the codec-backed Store. Only Provider is required.
type Options struct {
	Provider pr.Provider

	Namespace      string       // optional key prefix, joined with ":"
	BlobCodec      c.Codec[any] // nil => deterministic CBOR
	MaxBlobBytes   int          // blob size limit for the Encoder, both ways; 0 => none
	Logger         Logger       // nil => NopLogger
	ComputeSetCost SetCostFunc  // nil => 1 per entry
	Disabled       bool         // behave like the no-op store
}

// New builds the codec-backed Store. With Options.Disabled it returns the
// no-op store instead, so callers can keep a single construction path. The
// no-op store still honors BlobCodec and MaxBlobBytes.
func New(opts Options) (Store, error) {
	if opts.Disabled {
		blob, err := blobCodec(opts)
		if err != nil {
			return nil, err
		}
		return &nopStore{enc: NewEncoder(blob)}, nil
	}
	return newStore(opts)
}
