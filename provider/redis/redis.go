package redis

import (
	"bufio"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/entcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ pr.Provider      = (*Redis)(nil)
	_ pr.StatsProvider = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			// miss
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		}
	}
	return out, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// SetMulti has no multi-key-with-expiry primitive to lean on, so it issues
// one SET per key followed by one EXPIRE per key, all in a single pipelined
// round trip. If the pipeline fails midway some keys may be left without TTL.
func (p *Redis) SetMulti(ctx context.Context, items []pr.Item, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, it := range items {
			pipe.Set(ctx, it.Key, it.Value, 0)
		}
		if ttl > 0 {
			for _, it := range items {
				pipe.Expire(ctx, it.Key, ttl)
			}
		}
		return nil
	})
	return err
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

func (p *Redis) DelMulti(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return p.rdb.Del(ctx, keys...).Err()
}

func (p *Redis) IncrBy(ctx context.Context, key string, delta int64) (int64, bool, error) {
	n, err := p.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		var rerr goredis.Error
		if errors.As(err, &rerr) {
			// server refused: value is not an integer / wrong type
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

// Stats reads keyspace_hits / keyspace_misses from INFO stats. These are
// server-wide counters, not per-namespace.
func (p *Redis) Stats(ctx context.Context) (uint64, uint64, error) {
	info, err := p.rdb.Info(ctx, "stats").Result()
	if err != nil {
		return 0, 0, err
	}
	return parseInfoStats(info)
}

var errNoKeyspaceStats = errors.New("redis provider: INFO stats lacks keyspace counters")

func parseInfoStats(info string) (hits, misses uint64, err error) {
	var seenHits, seenMisses bool
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		name, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok {
			continue
		}
		switch name {
		case "keyspace_hits":
			if hits, err = strconv.ParseUint(val, 10, 64); err != nil {
				return 0, 0, err
			}
			seenHits = true
		case "keyspace_misses":
			if misses, err = strconv.ParseUint(val, 10, 64); err != nil {
				return 0, 0, err
			}
			seenMisses = true
		}
	}
	if !seenHits || !seenMisses {
		return 0, 0, errNoKeyspaceStats
	}
	return hits, misses, nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
