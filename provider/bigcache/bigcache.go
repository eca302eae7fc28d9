package bigcache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/entcache/provider"
)

// Provider is an in-process backend with a single, global entry lifetime.
type Provider struct {
	c *bc.BigCache

	counterMu sync.Mutex
}

var (
	_ pr.Provider      = (*Provider)(nil)
	_ pr.StatsProvider = (*Provider)(nil)
)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		b, ok, err := p.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = b
		}
	}
	return out, nil
}

// Set ignores ttl: BigCache does not support per-entry TTL and expires
// everything after the configured LifeWindow.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) SetMulti(ctx context.Context, items []pr.Item, ttl time.Duration) error {
	for _, it := range items {
		if _, err := p.Set(ctx, it.Key, it.Value, it.Cost, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	if err := p.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (p *Provider) DelMulti(ctx context.Context, keys []string) error {
	var errs []error
	for _, k := range keys {
		if err := p.Del(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Provider) IncrBy(ctx context.Context, key string, delta int64) (int64, bool, error) {
	p.counterMu.Lock()
	defer p.counterMu.Unlock()

	b, ok, err := p.Get(ctx, key)
	if err != nil {
		return 0, false, err
	}
	var n int64
	if ok {
		if n, err = strconv.ParseInt(string(b), 10, 64); err != nil {
			return 0, false, nil
		}
	}
	n += delta
	if err := p.c.Set(key, []byte(strconv.FormatInt(n, 10))); err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (p *Provider) Stats(context.Context) (uint64, uint64, error) {
	s := p.c.Stats()
	return uint64(s.Hits), uint64(s.Misses), nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
