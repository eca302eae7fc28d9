// Package persist is the entity write path: load the stored record,
// reconcile the candidate against it, commit, then purge stale cache keys and
// fire hooks.
//
// Only the durable commit can fail a write. Invalidation and hook failures
// happen after the commit; they are logged and reported but never returned.
package persist

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/record"
)

const tracerName = "github.com/unkn0wn-root/entcache/persist"

type Options struct {
	Store    Store           // required
	Cache    entcache.Store  // nil => entcache.NewNop()
	KeyNamer KeyNamer        // nil => DefaultKeyNamer
	Logger   entcache.Logger // nil => NopLogger
	Tracer   trace.Tracer    // nil => otel.Tracer(tracerName)
}

type Writer struct {
	store  Store
	cache  entcache.Store
	inv    *Invalidator
	hooks  *Dispatcher
	log    entcache.Logger
	tracer trace.Tracer
}

func NewWriter(opts Options) (*Writer, error) {
	if opts.Store == nil {
		return nil, errors.New("persist: store is required")
	}
	cache := opts.Cache
	if cache == nil {
		cache = entcache.NewNop()
	}
	log := opts.Logger
	if log == nil {
		log = entcache.NopLogger{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Writer{
		store:  opts.Store,
		cache:  cache,
		inv:    NewInvalidator(cache, opts.KeyNamer, log),
		hooks:  NewDispatcher(log),
		log:    log,
		tracer: tracer,
	}, nil
}

// Cache returns the store used for invalidation.
func (w *Writer) Cache() entcache.Store { return w.cache }

func (w *Writer) OnAfterWrite(name string, h WriteHook)   { w.hooks.OnAfterWrite(name, h) }
func (w *Writer) OnAfterDelete(name string, h DeleteHook) { w.hooks.OnAfterDelete(name, h) }

// Write reconciles candidate with the stored record and commits the result.
// A write that changes nothing on an existing record is not committed and
// triggers no invalidation or hooks.
func (w *Writer) Write(ctx context.Context, candidate *record.Record, autoUnion bool) (record.Result, error) {
	if candidate == nil {
		return record.Result{}, errors.New("persist: nil candidate")
	}
	ctx, span := w.tracer.Start(ctx, "persist.Write", trace.WithAttributes(
		attribute.String("entity.kind", candidate.Kind()),
		attribute.String("entity.key", candidate.Key),
		attribute.Bool("auto_union", autoUnion),
	))
	defer span.End()

	existing, err := w.store.Load(ctx, candidate.Schema(), candidate.Key)
	if errors.Is(err, ErrNotFound) {
		existing, err = nil, nil
	}
	if err != nil {
		return record.Result{}, w.fail(span, fmt.Errorf("persist: load %s %q: %w", candidate.Kind(), candidate.Key, err))
	}

	res := record.Reconcile(candidate, existing, autoUnion)
	span.SetAttributes(
		attribute.Bool("entity.new", res.IsNew),
		attribute.StringSlice("entity.changed", res.Changed),
	)
	if !res.IsNew && res.Changed.Empty() {
		return res, nil
	}

	if err := w.store.Put(ctx, res.Record); err != nil {
		return res, w.fail(span, fmt.Errorf("persist: put %s %q: %w", candidate.Kind(), candidate.Key, err))
	}

	// Committed: purges and hooks outlive the caller's cancellation.
	post := context.WithoutCancel(ctx)
	refs := record.AffectedReferences(res.Record, res.Changed, res.IsNew)
	rep := w.inv.Invalidate(post, res.Record.Kind(), res.Changed, refs)
	w.afterCommit(span, rep, w.hooks.DispatchWrite(post, res))
	return res, nil
}

// WriteMulti writes candidates in order and stops at the first durable
// failure, returning the results committed so far.
func (w *Writer) WriteMulti(ctx context.Context, candidates []*record.Record, autoUnion bool) ([]record.Result, error) {
	out := make([]record.Result, 0, len(candidates))
	for _, c := range candidates {
		res, err := w.Write(ctx, c, autoUnion)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Delete removes rec from the durable store, then purges every key the
// record and its references name and runs delete hooks.
func (w *Writer) Delete(ctx context.Context, rec *record.Record) error {
	if rec == nil {
		return errors.New("persist: nil record")
	}
	ctx, span := w.tracer.Start(ctx, "persist.Delete", trace.WithAttributes(
		attribute.String("entity.kind", rec.Kind()),
		attribute.String("entity.key", rec.Key),
	))
	defer span.End()

	if err := w.store.Delete(ctx, rec.Kind(), rec.Key); err != nil {
		return w.fail(span, fmt.Errorf("persist: delete %s %q: %w", rec.Kind(), rec.Key, err))
	}

	post := context.WithoutCancel(ctx)
	all := record.Changes(rec.Names())
	refs := record.AffectedReferences(rec, all, true)
	rep := w.inv.Invalidate(post, rec.Kind(), all, refs)
	w.afterCommit(span, rep, w.hooks.DispatchDelete(post, rec))
	return nil
}

func (w *Writer) afterCommit(span trace.Span, rep InvalidationReport, outcomes []HookOutcome) {
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	span.SetAttributes(
		attribute.Int("cache.keys", len(rep.Keys)),
		attribute.Int("cache.failed", len(rep.Failed)),
		attribute.Int("hooks.run", len(outcomes)),
		attribute.Int("hooks.failed", failed),
	)
	if len(rep.Failed) > 0 || failed > 0 {
		span.AddEvent("post-commit degraded")
	}
}

func (w *Writer) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	w.log.Error("write failed", entcache.Fields{"err": err})
	return err
}
