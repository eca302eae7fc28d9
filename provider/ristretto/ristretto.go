package ristretto

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/entcache/provider"
)

var errMetricsDisabled = errors.New("ristretto: metrics disabled")

// Provider is an in-process backend. Writes are made visible before Set
// returns (ristretto buffers admissions, so each write waits for the buffer
// to drain); this keeps read-your-writes for the write path.
type Provider struct {
	c *rc.Cache

	// serializes counter read-modify-write
	counterMu sync.Mutex
}

var (
	_ pr.Provider      = (*Provider)(nil)
	_ pr.StatsProvider = (*Provider)(nil)
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost in Ristretto is provided by the caller (entcache passes cost per Set).
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if b, ok, _ := p.Get(ctx, k); ok {
			out[k] = b
		}
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok := p.c.SetWithTTL(key, value, cost, ttl)
	p.c.Wait()
	return ok, nil
}

func (p *Provider) SetMulti(_ context.Context, items []pr.Item, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	for _, it := range items {
		p.c.SetWithTTL(it.Key, it.Value, it.Cost, ttl)
	}
	p.c.Wait()
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) DelMulti(_ context.Context, keys []string) error {
	for _, k := range keys {
		p.c.Del(k)
	}
	return nil
}

// IncrBy stores counters as decimal text, the same representation redis uses.
func (p *Provider) IncrBy(ctx context.Context, key string, delta int64) (int64, bool, error) {
	p.counterMu.Lock()
	defer p.counterMu.Unlock()

	var n int64
	if b, ok, _ := p.Get(ctx, key); ok {
		cur, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return 0, false, nil
		}
		n = cur
	}
	n += delta
	b := []byte(strconv.FormatInt(n, 10))
	p.c.Set(key, b, int64(len(b)))
	p.c.Wait()
	return n, true, nil
}

// Stats requires Config.Metrics.
func (p *Provider) Stats(context.Context) (uint64, uint64, error) {
	m := p.c.Metrics
	if m == nil {
		return 0, 0, errMetricsDisabled
	}
	return m.Hits(), m.Misses(), nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}
