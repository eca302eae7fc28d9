package persist

import (
	"context"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/record"
)

// InvalidationReport summarizes one Invalidate call.
type InvalidationReport struct {
	Keys   []string // deduplicated keys that were targeted
	Failed []string // keys whose delete failed
}

func (r InvalidationReport) Purged() int { return len(r.Keys) - len(r.Failed) }

// Invalidator purges cache keys made stale by a committed write. It is best
// effort: failures are logged and reported, never returned.
type Invalidator struct {
	cache entcache.Store
	namer KeyNamer
	log   entcache.Logger
}

func NewInvalidator(cache entcache.Store, namer KeyNamer, log entcache.Logger) *Invalidator {
	if cache == nil {
		cache = entcache.NewNop()
	}
	if namer == nil {
		namer = DefaultKeyNamer
	}
	if log == nil {
		log = entcache.NopLogger{}
	}
	return &Invalidator{cache: cache, namer: namer, log: log}
}

// Invalidate issues one DeleteMulti for every key the namer produces. If the
// batch fails it retries key by key so one bad key does not keep the rest
// alive.
func (iv *Invalidator) Invalidate(ctx context.Context, kind string, changed record.Changes, refs record.References) InvalidationReport {
	keys := dedupSorted(iv.namer.CacheKeys(kind, changed, refs))
	rep := InvalidationReport{Keys: keys}
	if len(keys) == 0 {
		return rep
	}

	err := iv.cache.DeleteMulti(ctx, keys)
	if err == nil {
		return rep
	}
	iv.log.Warn("invalidate batch failed; falling back to single deletes", entcache.Fields{
		"kind": kind, "keys": len(keys), "err": err,
	})
	for _, k := range keys {
		if err := iv.cache.Delete(ctx, k); err != nil {
			rep.Failed = append(rep.Failed, k)
			iv.log.Error("invalidate failed", entcache.Fields{"kind": kind, "key": k, "err": err})
		}
	}
	return rep
}
