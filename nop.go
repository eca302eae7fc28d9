package entcache

import (
	"context"
	"sync/atomic"
	"time"

	c "github.com/unkn0wn-root/entcache/codec"
)

// nopStore is used when no cache is configured. Writes are accepted and
// dropped, every lookup misses. The miss counter stays accurate so health
// checks that read Stats keep working.
type nopStore struct {
	misses atomic.Uint64
	enc    Encoder
}

var _ Store = (*nopStore)(nil)

// NewNop returns a Store that caches nothing. Each call returns a fresh
// instance with zeroed counters.
func NewNop() Store {
	return &nopStore{enc: NewEncoder(c.MustCBOR[any](true))}
}

func (n *nopStore) Get(context.Context, string) (Value, bool, error) {
	n.misses.Add(1)
	return Value{}, false, nil
}

func (n *nopStore) GetMulti(_ context.Context, keys []string) (map[string]Value, error) {
	n.misses.Add(uint64(len(keys)))
	return map[string]Value{}, nil
}

func (n *nopStore) Set(_ context.Context, key string, _ Value, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		return false, &ContractError{Op: "set", Key: key, Err: ErrNegativeTTL}
	}
	return true, nil
}

func (n *nopStore) SetMulti(_ context.Context, _ map[string]Value, ttl time.Duration) error {
	if ttl < 0 {
		return &ContractError{Op: "set_multi", Err: ErrNegativeTTL}
	}
	return nil
}

func (n *nopStore) Delete(context.Context, string) error        { return nil }
func (n *nopStore) DeleteMulti(context.Context, []string) error { return nil }

func (n *nopStore) Incr(context.Context, string, int64) (int64, bool, error) {
	n.misses.Add(1)
	return 0, false, nil
}

func (n *nopStore) Decr(context.Context, string, int64) (int64, bool, error) {
	n.misses.Add(1)
	return 0, false, nil
}

func (n *nopStore) Stats(context.Context) (Stats, bool) {
	return Stats{Misses: n.misses.Load()}, true
}

func (n *nopStore) Encoder() Encoder            { return n.enc }
func (n *nopStore) Close(context.Context) error { return nil }
