package entcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	c "github.com/unkn0wn-root/entcache/codec"
	"github.com/unkn0wn-root/entcache/internal/wire"
	pr "github.com/unkn0wn-root/entcache/provider"
)

type store struct {
	ns             string
	provider       pr.Provider
	enc            Encoder
	log            Logger
	computeSetCost SetCostFunc

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ Store = (*store)(nil)

func newStore(opts Options) (*store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("entcache: provider is required")
	}
	blob, err := blobCodec(opts)
	if err != nil {
		return nil, err
	}

	s := &store{
		ns:       opts.Namespace,
		provider: opts.Provider,
		enc:      NewEncoder(blob),
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
	}
	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(string, []byte) int64 { return 1 }
	}
	return s, nil
}

// blobCodec resolves the Encoder's blob codec. Enabled and disabled stores
// share it so blobs are byte-identical either way.
func blobCodec(opts Options) (c.Codec[any], error) {
	blob := opts.BlobCodec
	if blob == nil {
		cb, err := c.NewCBOR[any](true)
		if err != nil {
			return nil, fmt.Errorf("entcache: blob codec: %w", err)
		}
		blob = cb
	}
	if opts.MaxBlobBytes > 0 {
		blob = c.Limited[any]{Inner: blob, Max: opts.MaxBlobBytes}
	}
	return blob, nil
}

func (s *store) Encoder() Encoder { return s.enc }

func (s *store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

func (s *store) Get(ctx context.Context, key string) (Value, bool, error) {
	k := s.storageKey(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		return Value{}, false, &TransportError{Op: "get", Keys: []string{key}, Err: err}
	}
	if !ok {
		s.misses.Add(1)
		return Value{}, false, nil
	}
	v, ok := s.decode(ctx, k, raw)
	if !ok {
		s.misses.Add(1)
		return Value{}, false, nil
	}
	s.hits.Add(1)
	return v, true, nil
}

func (s *store) GetMulti(ctx context.Context, keys []string) (map[string]Value, error) {
	out := make(map[string]Value, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	storage := make([]string, len(keys))
	for i, k := range keys {
		storage[i] = s.storageKey(k)
	}
	raws, err := s.provider.GetMulti(ctx, storage)
	if err != nil {
		return nil, &TransportError{Op: "get_multi", Keys: keys, Err: err}
	}
	for i, k := range keys {
		raw, ok := raws[storage[i]]
		if !ok {
			s.misses.Add(1)
			continue
		}
		v, ok := s.decode(ctx, storage[i], raw)
		if !ok {
			s.misses.Add(1)
			continue
		}
		s.hits.Add(1)
		out[k] = v
	}
	return out, nil
}

// decode maps every decode failure to a miss. Corrupt entries are deleted
// (self-heal); entries of another version are left for the process that
// wrote them.
func (s *store) decode(ctx context.Context, storageKey string, raw []byte) (Value, bool) {
	v, err := UnmarshalValue(raw)
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, wire.ErrVersion):
		s.log.Debug("version mismatch; treating as miss", Fields{"key": storageKey})
	default:
		s.log.Debug("corrupt entry; deleting", Fields{"key": storageKey, "err": err})
		_ = s.provider.Del(ctx, storageKey)
	}
	return Value{}, false
}

func (s *store) Set(ctx context.Context, key string, v Value, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		return false, &ContractError{Op: "set", Key: key, Err: ErrNegativeTTL}
	}
	raw, err := MarshalValue(v)
	if err != nil {
		return false, err
	}
	k := s.storageKey(key)
	ok, err := s.provider.Set(ctx, k, raw, s.computeSetCost(k, raw), ttl)
	if err != nil {
		return false, &TransportError{Op: "set", Keys: []string{key}, Err: err}
	}
	if !ok {
		s.log.Debug("set rejected by provider (pressure)", Fields{"key": key})
	}
	return ok, nil
}

func (s *store) SetMulti(ctx context.Context, items map[string]Value, ttl time.Duration) error {
	if ttl < 0 {
		return &ContractError{Op: "set_multi", Err: ErrNegativeTTL}
	}
	if len(items) == 0 {
		return nil
	}
	batch := make([]pr.Item, 0, len(items))
	keys := make([]string, 0, len(items))
	for key, v := range items {
		raw, err := MarshalValue(v)
		if err != nil {
			return err
		}
		k := s.storageKey(key)
		batch = append(batch, pr.Item{Key: k, Value: raw, Cost: s.computeSetCost(k, raw)})
		keys = append(keys, key)
	}
	if err := s.provider.SetMulti(ctx, batch, ttl); err != nil {
		return &TransportError{Op: "set_multi", Keys: keys, Err: err}
	}
	return nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	if err := s.provider.Del(ctx, s.storageKey(key)); err != nil {
		return &TransportError{Op: "delete", Keys: []string{key}, Err: err}
	}
	return nil
}

func (s *store) DeleteMulti(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	storage := make([]string, len(keys))
	for i, k := range keys {
		storage[i] = s.storageKey(k)
	}
	if err := s.provider.DelMulti(ctx, storage); err != nil {
		return &TransportError{Op: "delete_multi", Keys: keys, Err: err}
	}
	return nil
}

func (s *store) Incr(ctx context.Context, key string, delta int64) (int64, bool, error) {
	return s.incrBy(ctx, "incr", key, delta)
}

func (s *store) Decr(ctx context.Context, key string, delta int64) (int64, bool, error) {
	return s.incrBy(ctx, "decr", key, -delta)
}

func (s *store) incrBy(ctx context.Context, op, key string, delta int64) (int64, bool, error) {
	n, ok, err := s.provider.IncrBy(ctx, s.storageKey(key), delta)
	if err != nil {
		return 0, false, &TransportError{Op: op, Keys: []string{key}, Err: err}
	}
	return n, ok, nil
}

func (s *store) Stats(ctx context.Context) (Stats, bool) {
	sp, ok := s.provider.(pr.StatsProvider)
	if !ok {
		return Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}, true
	}
	hits, misses, err := sp.Stats(ctx)
	if err != nil {
		s.log.Debug("provider stats unavailable", Fields{"err": err})
		return Stats{}, false
	}
	return Stats{Hits: hits, Misses: misses}, true
}

func (s *store) storageKey(userKey string) string {
	if s.ns == "" {
		return userKey
	}
	return s.ns + ":" + userKey
}
