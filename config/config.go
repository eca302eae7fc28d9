// Package config selects and builds the cache Store from the environment.
// Backend "none" (the default) yields the no-op Store.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/codec"
	"github.com/unkn0wn-root/entcache/provider"
	bcp "github.com/unkn0wn-root/entcache/provider/bigcache"
	rp "github.com/unkn0wn-root/entcache/provider/redis"
	rcp "github.com/unkn0wn-root/entcache/provider/ristretto"
)

const (
	BackendNone      = "none"
	BackendRedis     = "redis"
	BackendRistretto = "ristretto"
	BackendBigCache  = "bigcache"
)

type Config struct {
	Backend      string        `env:"ENTCACHE_BACKEND"         envDefault:"none"`
	Namespace    string        `env:"ENTCACHE_NAMESPACE"`
	RedisURL     string        `env:"ENTCACHE_REDIS_URL"       envDefault:"redis://localhost:6379/0"`
	BlobCodec    string        `env:"ENTCACHE_BLOB_CODEC"      envDefault:"cbor"`
	MaxBlobBytes int           `env:"ENTCACHE_MAX_BLOB_BYTES"  envDefault:"0"`
	LocalMaxCost int64         `env:"ENTCACHE_LOCAL_MAX_COST"  envDefault:"67108864"`
	LocalTTL     time.Duration `env:"ENTCACHE_LOCAL_TTL"       envDefault:"10m"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendNone, BackendRedis, BackendRistretto, BackendBigCache:
	default:
		errs = append(errs, fmt.Errorf("ENTCACHE_BACKEND: unknown backend %q", c.Backend))
	}
	switch c.BlobCodec {
	case "cbor", "msgpack", "json":
	default:
		errs = append(errs, fmt.Errorf("ENTCACHE_BLOB_CODEC: unknown codec %q", c.BlobCodec))
	}
	if c.MaxBlobBytes < 0 {
		errs = append(errs, errors.New("ENTCACHE_MAX_BLOB_BYTES: must be >= 0"))
	}
	if c.Backend == BackendRistretto && c.LocalMaxCost <= 0 {
		errs = append(errs, errors.New("ENTCACHE_LOCAL_MAX_COST: must be > 0"))
	}
	if c.Backend == BackendBigCache && c.LocalTTL <= 0 {
		errs = append(errs, errors.New("ENTCACHE_LOCAL_TTL: must be > 0"))
	}
	return errors.Join(errs...)
}

// Open builds the Store cfg selects. The caller owns it and must Close it.
func Open(cfg Config, log entcache.Logger) (entcache.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendNone {
		return entcache.NewNop(), nil
	}

	blob, err := blobCodec(cfg.BlobCodec)
	if err != nil {
		return nil, err
	}
	opts := entcache.Options{
		Namespace:    cfg.Namespace,
		BlobCodec:    blob,
		MaxBlobBytes: cfg.MaxBlobBytes,
		Logger:       log,
	}

	var p provider.Provider
	switch cfg.Backend {
	case BackendRedis:
		ro, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("ENTCACHE_REDIS_URL: %w", err)
		}
		p, err = rp.New(rp.Config{Client: goredis.NewClient(ro), CloseClient: true})
		if err != nil {
			return nil, err
		}
	case BackendRistretto:
		p, err = rcp.New(rcp.Config{
			NumCounters: 1e6,
			MaxCost:     cfg.LocalMaxCost,
			BufferItems: 64,
			Metrics:     true,
		})
		if err != nil {
			return nil, err
		}
		opts.ComputeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	case BackendBigCache:
		p, err = bcp.New(bcp.Config{LifeWindow: cfg.LocalTTL})
		if err != nil {
			return nil, err
		}
	}
	opts.Provider = p

	st, err := entcache.New(opts)
	if err != nil {
		_ = p.Close(context.Background())
		return nil, err
	}
	if log != nil {
		log.Info("cache opened", entcache.Fields{"backend": cfg.Backend, "namespace": cfg.Namespace})
	}
	return st, nil
}

func blobCodec(name string) (codec.Codec[any], error) {
	switch name {
	case "msgpack":
		return codec.Msgpack[any]{}, nil
	case "json":
		return codec.JSON[any]{}, nil
	default:
		cb, err := codec.NewCBOR[any](true)
		if err != nil {
			return nil, err
		}
		return cb, nil
	}
}
