package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/multidispatch/internal/cachemanager"
	"github.com/zjrosen/multidispatch/internal/conflict"
	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/tracing"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// State is the lifecycle state of a Registry.
type State int

const (
	StateEmpty State = iota
	StateConsistent
	// StateDirty is only observable while a registration is rebuilding the
	// ordering.
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateConsistent:
		return "consistent"
	case StateDirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Stats counts registry activity since creation.
type Stats struct {
	Resolutions   int64
	CacheHits     int64
	Scans         int64
	Rebuilds      int64
	Signatures    int
	CachedEntries int
}

type resolutionCache = cachemanager.ReadThroughCache[string, *Variant, []typetag.Tag]

// table is an immutable view of the registry: the variants, their ordering
// and the cache of resolutions computed against them. Mutations build a
// new table; a table is never modified after it is published.
type table struct {
	variants    map[string]*Variant
	ordering    []signature.Signature
	ambiguities []conflict.Pair
	cache       *resolutionCache
}

// Registry holds the variants of one operation.
//
// Registration is serialized; resolution reads the current table without
// locking and never observes a partially rebuilt ordering.
type Registry struct {
	name       string
	id         string
	rel        typetag.Provider
	classifier typetag.Classifier
	notifier   Notifier
	tracer     trace.Tracer
	method     bool
	suggest    bool
	ttl        time.Duration
	skipCache  bool

	mu      sync.Mutex
	dirty   atomic.Bool
	current atomic.Pointer[table]

	resolutions atomic.Int64
	cacheHits   atomic.Int64
	scans       atomic.Int64
	rebuilds    atomic.Int64
}

// New creates an empty registry for the operation name over rel.
func New(name string, rel typetag.Provider, opts ...Option) *Registry {
	r := &Registry{
		name:     name,
		id:       uuid.New().String(),
		rel:      rel,
		notifier: LogNotifier{},
		tracer:   tracing.Noop().Tracer(),
		suggest:  true,
		ttl:      cachemanager.NoExpiration,
	}
	if c, ok := rel.(typetag.Classifier); ok {
		r.classifier = c
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = NopNotifier{}
	}
	r.current.Store(r.newTable(map[string]*Variant{}))
	return r
}

// Name returns the operation name.
func (r *Registry) Name() string { return r.name }

// ID returns the registry's unique identifier.
func (r *Registry) ID() string { return r.id }

// IsMethod reports whether the first call argument is a receiver.
func (r *Registry) IsMethod() bool { return r.method }

// Provider returns the type relation the registry reasons over.
func (r *Registry) Provider() typetag.Provider { return r.rel }

// Add registers fn under sig. Unions in sig are expanded and each expansion
// stored separately; an existing variant with the same signature is
// replaced.
func (r *Registry) Add(sig signature.Signature, name string, fn Func) error {
	return r.AddBatch(Entry{Signature: sig, Name: name, Fn: fn})
}

// Register is Add with the signature given as elements.
func (r *Registry) Register(name string, fn Func, elems ...signature.Element) error {
	return r.Add(signature.New(elems...), name, fn)
}

// AddBatch registers several entries with a single rebuild. Every entry is
// validated first; if any is rejected nothing is stored.
func (r *Registry) AddBatch(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := r.validate(e); err != nil {
			log.ErrorErr(log.CatRegistry, "rejected signature", err, "operation", r.name, "signature", e.Signature.Key())
			r.notifier.Invalid(err)
			return err
		}
	}

	r.mu.Lock()
	r.dirty.Store(true)
	old := r.current.Load()
	variants := maps.Clone(old.variants)
	added := 0
	for _, e := range entries {
		for _, s := range signature.Expand(e.Signature) {
			variants[s.Key()] = &Variant{Name: e.Name, Signature: s, Declared: e.Signature, Fn: e.Fn}
			added++
		}
	}
	next := r.newTable(variants)
	r.current.Store(next)
	r.rebuilds.Add(1)
	r.dirty.Store(false)
	r.mu.Unlock()

	if err := old.cache.Invalidate(context.Background()); err != nil {
		log.ErrorErr(log.CatCache, "failed to invalidate resolution cache", err, "operation", r.name)
	}
	log.Debug(log.CatRegistry, "registered signatures",
		"operation", r.name,
		"entries", len(entries),
		"expanded", added,
		"signatures", len(next.variants),
		"ambiguities", len(next.ambiguities))

	if len(next.ambiguities) > 0 {
		r.notifier.Ambiguity(r.report(next.ambiguities))
	}
	return nil
}

func (r *Registry) validate(e Entry) *InvalidSignatureError {
	if e.Fn == nil {
		return &InvalidSignatureError{Operation: r.name, Signature: e.Signature, Err: ErrNilVariant}
	}
	if err := e.Signature.Validate(r.rel); err != nil {
		return &InvalidSignatureError{Operation: r.name, Signature: e.Signature, Err: err}
	}
	return nil
}

func (r *Registry) newTable(variants map[string]*Variant) *table {
	sigs := make([]signature.Signature, 0, len(variants))
	for _, v := range variants {
		sigs = append(sigs, v.Signature)
	}
	t := &table{
		variants:    variants,
		ordering:    conflict.Ordering(r.rel, sigs),
		ambiguities: conflict.Ambiguities(r.rel, sigs),
	}
	manager := cachemanager.NewInMemoryCacheManager[string, *Variant](
		"resolution:"+r.name, r.ttl, cachemanager.DefaultCleanupInterval)
	t.cache = cachemanager.NewReadThroughCache[string, *Variant, []typetag.Tag](manager, func(ctx context.Context, tags []typetag.Tag) (*Variant, error) {
		return r.lookup(t, tags)
	}, r.skipCache)
	return t
}

func (r *Registry) report(pairs []conflict.Pair) AmbiguityReport {
	rep := AmbiguityReport{
		Operation:  r.name,
		RegistryID: r.id,
		Pairs:      pairs,
	}
	if r.suggest {
		for _, p := range pairs {
			// Pairs of different arity have no suggestion.
			s, _ := conflict.SuperSignature(r.rel, p.Signatures())
			rep.Suggestions = append(rep.Suggestions, s)
		}
	}
	rep.Text = WarningText(r.name, pairs, rep.Suggestions)
	return rep
}

// Resolve returns the variant that handles a call with the given argument
// tags, or an *UnresolvedError.
func (r *Registry) Resolve(ctx context.Context, tags ...typetag.Tag) (*Variant, error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanResolve, trace.WithAttributes(
		attribute.String(tracing.AttrOperation, r.name),
		attribute.String(tracing.AttrTypes, signature.KeyOf(tags)),
	))
	defer span.End()

	v, hit, err := r.resolve(ctx, r.current.Load(), tags)
	span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, hit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String(tracing.AttrVariant, v.Name),
		attribute.String(tracing.AttrSignature, v.Signature.Key()),
	)
	return v, nil
}

func (r *Registry) resolve(ctx context.Context, t *table, tags []typetag.Tag) (*Variant, bool, error) {
	r.resolutions.Add(1)
	v, hit, err := t.cache.Get(ctx, signature.KeyOf(tags), tags, r.ttl)
	if err != nil {
		log.Debug(log.CatResolve, "unresolved call", "operation", r.name, "types", signature.KeyOf(tags))
		return nil, false, err
	}
	if hit {
		r.cacheHits.Add(1)
	}
	return v, hit, nil
}

// lookup finds the variant for tags in t, bypassing the cache. An exact
// signature match wins outright; otherwise the first matching signature in
// the ordering is the most specific.
func (r *Registry) lookup(t *table, tags []typetag.Tag) (*Variant, error) {
	if v, ok := t.variants[signature.KeyOf(tags)]; ok && v.Signature.ExactlyMatches(tags) {
		return v, nil
	}
	r.scans.Add(1)
	for _, s := range t.ordering {
		if s.Matches(r.rel, tags) {
			return t.variants[s.Key()], nil
		}
	}
	return nil, &UnresolvedError{Operation: r.name, Types: slices.Clone(tags)}
}

// Candidates returns every variant applicable to tags, most specific first.
func (r *Registry) Candidates(tags ...typetag.Tag) []*Variant {
	return r.current.Load().candidates(r.rel, tags)
}

func (t *table) candidates(rel typetag.Provider, tags []typetag.Tag) []*Variant {
	var out []*Variant
	for _, s := range t.ordering {
		if s.Matches(rel, tags) {
			out = append(out, t.variants[s.Key()])
		}
	}
	return out
}

// Call classifies args, resolves and invokes the winning variant. A variant
// returning ErrNotHandled passes the call to the next applicable variant in
// the ordering; when every candidate declines the call is unresolved.
func (r *Registry) Call(ctx context.Context, args ...any) (any, error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanCall, trace.WithAttributes(
		attribute.String(tracing.AttrOperation, r.name),
		attribute.String(tracing.AttrRegistryID, r.id),
		attribute.Bool(tracing.AttrMethod, r.method),
	))
	defer span.End()

	out, err := r.call(ctx, span, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (r *Registry) call(ctx context.Context, span trace.Span, args []any) (any, error) {
	dispatched := args
	if r.method {
		if len(args) == 0 {
			return nil, fmt.Errorf("%s: %w", r.name, ErrMissingReceiver)
		}
		dispatched = args[1:]
	}
	tags, err := r.classify(dispatched)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrTypes, signature.KeyOf(tags)))

	t := r.current.Load()
	first, _, err := r.resolve(ctx, t, tags)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrVariant, first.Name))

	out, err := first.Fn(ctx, args...)
	if !errors.Is(err, ErrNotHandled) {
		return out, err
	}

	declined := 1
	span.AddEvent(tracing.EventVariantDeclined, trace.WithAttributes(
		attribute.String(tracing.AttrSignature, first.Signature.Key())))
	for _, v := range t.candidates(r.rel, tags) {
		if v.Signature.Equal(first.Signature) {
			continue
		}
		log.Debug(log.CatResolve, "falling back", "operation", r.name, "signature", v.Signature.Key(), "declined", declined)
		span.AddEvent(tracing.EventFallback, trace.WithAttributes(
			attribute.String(tracing.AttrSignature, v.Signature.Key())))
		out, err = v.Fn(ctx, args...)
		if !errors.Is(err, ErrNotHandled) {
			return out, err
		}
		declined++
	}
	span.SetAttributes(attribute.Int(tracing.AttrDeclined, declined))
	return nil, &UnresolvedError{Operation: r.name, Types: tags, Declined: declined}
}

func (r *Registry) classify(args []any) ([]typetag.Tag, error) {
	if r.classifier == nil {
		return nil, fmt.Errorf("%s: %w", r.name, ErrNoClassifier)
	}
	tags := make([]typetag.Tag, len(args))
	for i, a := range args {
		tag, err := r.classifier.TagOf(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", r.name, i, err)
		}
		tags[i] = tag
	}
	return tags, nil
}

// Lookup returns the variant registered under exactly sig.
func (r *Registry) Lookup(sig signature.Signature) (*Variant, bool) {
	v, ok := r.current.Load().variants[sig.Key()]
	return v, ok
}

// Ordering returns the expanded signatures in resolution order.
func (r *Registry) Ordering() []signature.Signature {
	return slices.Clone(r.current.Load().ordering)
}

// Ambiguities returns the ambiguous signature pairs of the current set.
func (r *Registry) Ambiguities() []conflict.Pair {
	return slices.Clone(r.current.Load().ambiguities)
}

// Report describes the current ambiguities, or returns false when there
// are none.
func (r *Registry) Report() (AmbiguityReport, bool) {
	pairs := r.Ambiguities()
	if len(pairs) == 0 {
		return AmbiguityReport{}, false
	}
	return r.report(pairs), true
}

// Variants returns the registered variants in resolution order.
func (r *Registry) Variants() []*Variant {
	t := r.current.Load()
	out := make([]*Variant, len(t.ordering))
	for i, s := range t.ordering {
		out[i] = t.variants[s.Key()]
	}
	return out
}

// Signatures returns the expanded signatures sorted by key.
func (r *Registry) Signatures() []signature.Signature {
	t := r.current.Load()
	out := make([]signature.Signature, 0, len(t.variants))
	for _, v := range t.variants {
		out = append(out, v.Signature)
	}
	slices.SortFunc(out, func(a, b signature.Signature) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return out
}

// Len returns the number of expanded signatures.
func (r *Registry) Len() int {
	return len(r.current.Load().variants)
}

// State reports the lifecycle state.
func (r *Registry) State() State {
	if r.dirty.Load() {
		return StateDirty
	}
	if r.Len() == 0 {
		return StateEmpty
	}
	return StateConsistent
}

// Stats returns activity counters.
func (r *Registry) Stats() Stats {
	t := r.current.Load()
	return Stats{
		Resolutions:   r.resolutions.Load(),
		CacheHits:     r.cacheHits.Load(),
		Scans:         r.scans.Load(),
		Rebuilds:      r.rebuilds.Load(),
		Signatures:    len(t.variants),
		CachedEntries: t.cache.Len(),
	}
}
