package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/record"
)

// ErrHookPanicked wraps the value recovered from a panicking hook.
var ErrHookPanicked = errors.New("persist: hook panicked")

// WriteHook runs after a write has been committed. Hooks should hand long
// work to a queue rather than do it inline.
type WriteHook func(ctx context.Context, res record.Result) error

// DeleteHook runs after a record has been deleted.
type DeleteHook func(ctx context.Context, rec *record.Record) error

// HookOutcome is the result of one hook invocation.
type HookOutcome struct {
	Hook string
	Key  string
	Err  error
}

func (o HookOutcome) OK() bool { return o.Err == nil }

type namedHook[H any] struct {
	name string
	fn   H
}

// Dispatcher runs registered hooks in registration order on the calling
// goroutine. Registration is append-only and safe for concurrent use.
type Dispatcher struct {
	mu     sync.RWMutex
	writes []namedHook[WriteHook]
	dels   []namedHook[DeleteHook]
	log    entcache.Logger
}

func NewDispatcher(log entcache.Logger) *Dispatcher {
	if log == nil {
		log = entcache.NopLogger{}
	}
	return &Dispatcher{log: log}
}

func (d *Dispatcher) OnAfterWrite(name string, h WriteHook) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.writes = append(d.writes, namedHook[WriteHook]{name: name, fn: h})
	d.mu.Unlock()
}

func (d *Dispatcher) OnAfterDelete(name string, h DeleteHook) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.dels = append(d.dels, namedHook[DeleteHook]{name: name, fn: h})
	d.mu.Unlock()
}

// DispatchWrite runs every write hook, even after ctx is cancelled: the write
// they react to has already been committed.
func (d *Dispatcher) DispatchWrite(ctx context.Context, res record.Result) []HookOutcome {
	if res.Record == nil {
		return nil
	}
	d.mu.RLock()
	hooks := d.writes
	d.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	key := res.Record.Key
	out := make([]HookOutcome, 0, len(hooks))
	for _, h := range hooks {
		err := d.call(h.name, key, func() error { return h.fn(ctx, res) })
		out = append(out, HookOutcome{Hook: h.name, Key: key, Err: err})
	}
	return out
}

func (d *Dispatcher) DispatchDelete(ctx context.Context, rec *record.Record) []HookOutcome {
	if rec == nil {
		return nil
	}
	d.mu.RLock()
	hooks := d.dels
	d.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	out := make([]HookOutcome, 0, len(hooks))
	for _, h := range hooks {
		err := d.call(h.name, rec.Key, func() error { return h.fn(ctx, rec) })
		out = append(out, HookOutcome{Hook: h.name, Key: rec.Key, Err: err})
	}
	return out
}

func (d *Dispatcher) call(name, key string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanicked, r)
		}
		if err != nil {
			d.log.Error("hook failed", entcache.Fields{"hook": name, "record": key, "err": err})
		}
	}()
	return fn()
}
