package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/testutil"
	"github.com/zjrosen/multidispatch/internal/tracing"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// returns builds a variant returning v.
func returns(v any) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		return v, nil
	}
}

func inheritance(t *testing.T) *typetag.Hierarchy {
	t.Helper()
	return testutil.NewBuilder(t).WithInheritanceTypes().Build()
}

func numeric(t *testing.T) *typetag.Hierarchy {
	t.Helper()
	return testutil.NewBuilder(t).WithNumericTypes().Build()
}

func mustAdd(t *testing.T, r *Registry, sig, name string) {
	t.Helper()
	require.NoError(t, r.Add(signature.MustParse(sig), name, returns(name)))
}

func TestRegistry_NewIsEmpty(t *testing.T) {
	r := New("f", inheritance(t), WithNotifier(NopNotifier{}))

	require.Equal(t, "f", r.Name())
	require.NotEmpty(t, r.ID())
	require.False(t, r.IsMethod())
	require.Equal(t, StateEmpty, r.State())
	require.Zero(t, r.Len())
	require.Empty(t, r.Ordering())
	require.Empty(t, r.Ambiguities())
	require.Equal(t, "empty", r.State().String())
}

func TestRegistry_IDsAreUnique(t *testing.T) {
	h := inheritance(t)
	require.NotEqual(t, New("f", h).ID(), New("f", h).ID())
}

func TestRegistry_MostSpecificWins(t *testing.T) {
	r := New("f", inheritance(t))
	mustAdd(t, r, "A", "base")
	mustAdd(t, r, "C", "derived")

	v, err := r.Resolve(context.Background(), "D")
	require.NoError(t, err)
	require.Equal(t, "derived", v.Name)

	v, err = r.Resolve(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, "base", v.Name)
	require.Equal(t, StateConsistent, r.State())
}

func TestRegistry_CompetingMultiple(t *testing.T) {
	r := New("h", inheritance(t))
	mustAdd(t, r, "A, B", "1")
	mustAdd(t, r, "C, B", "2")

	v, err := r.Resolve(context.Background(), "D", "B")
	require.NoError(t, err)
	require.Equal(t, "2", v.Name)
}

func TestRegistry_InheritanceAndMultipleDispatch(t *testing.T) {
	r := New("f", inheritance(t))
	mustAdd(t, r, "A, A", "aa")
	mustAdd(t, r, "A, B", "ab")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"A", "A"}, "aa"},
		{[]string{"A", "C"}, "aa"},
		{[]string{"A", "B"}, "ab"},
		{[]string{"C", "B"}, "ab"},
	}
	for _, tt := range tests {
		v, err := r.Resolve(context.Background(), testutil.Tags(tt.args...)...)
		require.NoError(t, err)
		require.Equal(t, tt.want, v.Name, "%v", tt.args)
	}

	_, err := r.Resolve(context.Background(), "B", "B")
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestRegistry_AmbiguousResolutionIsDeterministic(t *testing.T) {
	h := inheritance(t)
	forward := New("f", h, WithNotifier(NopNotifier{}))
	mustAdd(t, forward, "A, C", "ac")
	mustAdd(t, forward, "C, A", "ca")

	backward := New("f", h, WithNotifier(NopNotifier{}))
	mustAdd(t, backward, "C, A", "ca")
	mustAdd(t, backward, "A, C", "ac")

	require.Len(t, forward.Ambiguities(), 1)
	require.Equal(t, forward.Ambiguities(), backward.Ambiguities())
	require.Equal(t, forward.Ordering(), backward.Ordering())

	first, err := forward.Resolve(context.Background(), "C", "C")
	require.NoError(t, err)
	other, err := backward.Resolve(context.Background(), "C", "C")
	require.NoError(t, err)
	require.Equal(t, first.Name, other.Name)

	again, err := forward.Resolve(context.Background(), "C", "C")
	require.NoError(t, err)
	require.Same(t, first, again)
}

func TestRegistry_SecondResolutionHitsCache(t *testing.T) {
	r := New("f", inheritance(t))
	mustAdd(t, r, "A", "base")

	first, err := r.Resolve(context.Background(), "D")
	require.NoError(t, err)
	stats := r.Stats()
	require.EqualValues(t, 1, stats.Scans)
	require.EqualValues(t, 0, stats.CacheHits)
	require.Equal(t, 1, stats.CachedEntries)

	second, err := r.Resolve(context.Background(), "D")
	require.NoError(t, err)
	require.Same(t, first, second)

	stats = r.Stats()
	require.EqualValues(t, 1, stats.Scans, "cached resolution must not rescan the ordering")
	require.EqualValues(t, 1, stats.CacheHits)
	require.EqualValues(t, 2, stats.Resolutions)
}

func TestRegistry_AddInvalidatesCache(t *testing.T) {
	r := New("f", inheritance(t))
	mustAdd(t, r, "A", "base")

	v, err := r.Resolve(context.Background(), "C")
	require.NoError(t, err)
	require.Equal(t, "base", v.Name)

	mustAdd(t, r, "C", "derived")
	require.Zero(t, r.Stats().CachedEntries)

	v, err = r.Resolve(context.Background(), "C")
	require.NoError(t, err)
	require.Equal(t, "derived", v.Name)
}

func TestRegistry_Unresolved(t *testing.T) {
	r := New("f", numeric(t))
	mustAdd(t, r, "Int", "inc")

	_, err := r.Resolve(context.Background(), "String", "Int")
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	require.Equal(t, "f", unresolved.Operation)
	require.Equal(t, testutil.Tags("String", "Int"), unresolved.Types)
	require.ErrorIs(t, err, ErrUnresolved)
	require.Equal(t, "could not find signature for f: <String, Int>", err.Error())
	require.Zero(t, r.Stats().CachedEntries, "failures are not cached")
}

func TestRegistry_ExactMatchBypassesSearch(t *testing.T) {
	r := New("f", inheritance(t), WithNotifier(NopNotifier{}))
	mustAdd(t, r, "A, C", "ac")
	mustAdd(t, r, "C, A", "ca")

	v, err := r.Resolve(context.Background(), "C", "A")
	require.NoError(t, err)
	require.Equal(t, "ca", v.Name)
	require.Zero(t, r.Stats().Scans)
}

func TestRegistry_Variadic(t *testing.T) {
	r := New("sum", numeric(t))
	require.NoError(t, r.Register("ints", returns("ints"), signature.Variadic("Int")))

	for _, args := range [][]string{nil, {"Int"}, {"Int", "Int", "Int"}} {
		v, err := r.Resolve(context.Background(), testutil.Tags(args...)...)
		require.NoError(t, err, "%v", args)
		require.Equal(t, "ints", v.Name)
	}

	_, err := r.Resolve(context.Background(), "String")
	require.ErrorIs(t, err, ErrUnresolved)
	_, err = r.Resolve(context.Background(), "Int", "Float")
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestRegistry_VariadicLosesToFixedArity(t *testing.T) {
	r := New("sum", numeric(t))
	require.NoError(t, r.Register("many", returns("many"), signature.Variadic("Number")))
	require.NoError(t, r.Register("two", returns("two"), signature.Of("Int"), signature.Of("Int")))

	v, err := r.Resolve(context.Background(), "Int", "Int")
	require.NoError(t, err)
	require.Equal(t, "two", v.Name)

	v, err = r.Resolve(context.Background(), "Int", "Float")
	require.NoError(t, err)
	require.Equal(t, "many", v.Name)
}

func TestRegistry_UnionMatchesSeparateRegistrations(t *testing.T) {
	h := inheritance(t)
	union := New("f", h)
	require.NoError(t, union.Add(signature.MustParse("(A|B), E"), "v", returns("v")))
	require.Equal(t, 2, union.Len())

	separate := New("f", h)
	require.NoError(t, separate.Add(signature.MustParse("A, E"), "v", returns("v")))
	require.NoError(t, separate.Add(signature.MustParse("B, E"), "v", returns("v")))

	require.Equal(t, separate.Signatures(), union.Signatures())
	require.Equal(t, separate.Ordering(), union.Ordering())

	tags := []typetag.Tag{"A", "B", "C", "D", "E"}
	rapid.Check(t, func(rt *rapid.T) {
		args := rapid.SliceOfN(rapid.SampledFrom(tags), 0, 3).Draw(rt, "args")
		u, uerr := union.Resolve(context.Background(), args...)
		s, serr := separate.Resolve(context.Background(), args...)
		require.Equal(rt, serr == nil, uerr == nil, "%v", args)
		if uerr == nil {
			require.Equal(rt, s.Signature.Key(), u.Signature.Key())
		}
	})
}

func TestRegistry_VariantKeepsDeclaredSignature(t *testing.T) {
	r := New("f", inheritance(t))
	declared := signature.MustParse("(A|B)")
	require.NoError(t, r.Add(declared, "v", returns("v")))

	v, ok := r.Lookup(signature.MustParse("B"))
	require.True(t, ok)
	require.Equal(t, "B", v.Signature.Key())
	require.True(t, v.Declared.Equal(declared))

	_, ok = r.Lookup(declared)
	require.False(t, ok, "unions are never stored")
}

func TestRegistry_ReplacesIdenticalSignature(t *testing.T) {
	r := New("f", inheritance(t))
	mustAdd(t, r, "A", "first")
	mustAdd(t, r, "A", "second")

	require.Equal(t, 1, r.Len())
	v, err := r.Resolve(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, "second", v.Name)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Ambiguity(report AmbiguityReport) {
	m.Called(report)
}

func (m *mockNotifier) Invalid(err *InvalidSignatureError) {
	m.Called(err)
}

func TestRegistry_InvalidSignatureLeavesStateUnchanged(t *testing.T) {
	n := &mockNotifier{}
	n.On("Invalid", mock.MatchedBy(func(err *InvalidSignatureError) bool {
		return err.Operation == "f" && errors.Is(err, signature.ErrUnknownTag)
	})).Return().Once()

	r := New("f", inheritance(t), WithNotifier(n))
	err := r.Add(signature.MustParse("A, Nope"), "bad", returns("bad"))

	require.ErrorIs(t, err, ErrInvalidSignature)
	require.ErrorIs(t, err, signature.ErrUnknownTag)
	var invalid *InvalidSignatureError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "A, Nope", invalid.Signature.Key())

	require.Equal(t, StateEmpty, r.State())
	require.Zero(t, r.Stats().Rebuilds)
	n.AssertExpectations(t)
}

func TestRegistry_InvalidSignatureErrors(t *testing.T) {
	r := New("f", inheritance(t), WithNotifier(NopNotifier{}))

	tests := []struct {
		name string
		sig  signature.Signature
		fn   Func
		want error
	}{
		{"variadic not last", signature.MustParse("...A, B"), returns(1), signature.ErrVariadicNotLast},
		{"empty variadic", signature.New(signature.Variadic()), returns(1), signature.ErrEmptyVariadic},
		{"empty union", signature.New(signature.Union()), returns(1), signature.ErrEmptyUnion},
		{"nil function", signature.MustParse("A"), nil, ErrNilVariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Add(tt.sig, "v", tt.fn)
			require.ErrorIs(t, err, ErrInvalidSignature)
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.Zero(t, r.Len())
}

func TestRegistry_AddBatch(t *testing.T) {
	r := New("f", inheritance(t))
	err := r.AddBatch(
		Entry{Signature: signature.MustParse("A"), Name: "a", Fn: returns("a")},
		Entry{Signature: signature.MustParse("(C|B)"), Name: "cb", Fn: returns("cb")},
		Entry{Signature: signature.MustParse("D"), Name: "d", Fn: returns("d")},
	)
	require.NoError(t, err)
	require.Equal(t, 4, r.Len())
	require.EqualValues(t, 1, r.Stats().Rebuilds)
	require.NoError(t, r.AddBatch())
	require.EqualValues(t, 1, r.Stats().Rebuilds)
}

func TestRegistry_AddBatchIsAllOrNothing(t *testing.T) {
	r := New("f", inheritance(t), WithNotifier(NopNotifier{}))
	mustAdd(t, r, "A", "a")

	err := r.AddBatch(
		Entry{Signature: signature.MustParse("B"), Name: "b", Fn: returns("b")},
		Entry{Signature: signature.MustParse("Nope"), Name: "bad", Fn: returns("bad")},
	)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.Equal(t, 1, r.Len())
	_, ok := r.Lookup(signature.MustParse("B"))
	require.False(t, ok)
}

func TestRegistry_AmbiguityReport(t *testing.T) {
	n := &mockNotifier{}
	n.On("Ambiguity", mock.MatchedBy(func(rep AmbiguityReport) bool {
		return rep.Operation == "f" &&
			len(rep.Pairs) == 1 &&
			len(rep.Suggestions) == 1 &&
			rep.Suggestions[0].Key() == "C, C"
	})).Return().Once()

	r := New("f", inheritance(t), WithNotifier(n))
	mustAdd(t, r, "A, C", "ac")
	mustAdd(t, r, "C, A", "ca")
	n.AssertExpectations(t)

	// Adding the suggested signature resolves the ambiguity.
	mustAdd(t, r, "C, C", "cc")
	require.Empty(t, r.Ambiguities())
	n.AssertNumberOfCalls(t, "Ambiguity", 1)
}

func TestRegistry_Report(t *testing.T) {
	r := New("f", inheritance(t), WithNotifier(NopNotifier{}))
	_, ok := r.Report()
	require.False(t, ok)

	mustAdd(t, r, "A, C", "ac")
	mustAdd(t, r, "C, A", "ca")

	rep, ok := r.Report()
	require.True(t, ok)
	require.Len(t, rep.Pairs, 1)
	require.Equal(t, "C, C", rep.Suggestions[0].Key())
	require.Contains(t, rep.Text, "register f(C, C)")
}

func TestRegistry_AmbiguityReportWithoutSuggestions(t *testing.T) {
	var got []AmbiguityReport
	r := New("f", inheritance(t),
		WithSuggestions(false),
		WithNotifier(NotifierFunc(func(rep AmbiguityReport) { got = append(got, rep) })),
	)
	mustAdd(t, r, "A, C", "ac")
	mustAdd(t, r, "C, A", "ca")

	require.Len(t, got, 1)
	require.Nil(t, got[0].Suggestions)
	require.Equal(t, r.ID(), got[0].RegistryID)
	require.NotContains(t, got[0].Text, "Consider")
}

func TestRegistry_Call(t *testing.T) {
	r := New("f", numeric(t))
	require.NoError(t, r.Register("inc", func(ctx context.Context, args ...any) (any, error) {
		return args[0].(int) + 1, nil
	}, signature.Of("Int")))
	require.NoError(t, r.Register("dec", func(ctx context.Context, args ...any) (any, error) {
		return args[0].(float64) - 1, nil
	}, signature.Of("Float")))

	got, err := r.Call(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, got)

	got, err = r.Call(context.Background(), 1.0)
	require.NoError(t, err)
	require.Equal(t, 0.0, got)

	_, err = r.Call(context.Background(), "hello")
	require.ErrorIs(t, err, ErrUnresolved)

	_, err = r.Call(context.Background(), true)
	require.ErrorIs(t, err, typetag.ErrUnclassifiable)
}

func TestRegistry_CallPropagatesVariantError(t *testing.T) {
	boom := errors.New("boom")
	r := New("f", numeric(t))
	require.NoError(t, r.Register("fails", func(ctx context.Context, args ...any) (any, error) {
		return nil, boom
	}, signature.Of("Int")))
	require.NoError(t, r.Register("number", returns("number"), signature.Of("Number")))

	_, err := r.Call(context.Background(), 1)
	require.ErrorIs(t, err, boom)
}

func TestRegistry_CallFallsBackOnNotHandled(t *testing.T) {
	var tried []string
	variant := func(name string, handle bool) Func {
		return func(ctx context.Context, args ...any) (any, error) {
			tried = append(tried, name)
			if !handle {
				return nil, fmt.Errorf("%s: %w", name, ErrNotHandled)
			}
			return name, nil
		}
	}

	r := New("f", numeric(t))
	require.NoError(t, r.Register("int", variant("int", false), signature.Of("Int")))
	require.NoError(t, r.Register("integer", variant("integer", false), signature.Of("Integer")))
	require.NoError(t, r.Register("number", variant("number", true), signature.Of("Number")))
	require.NoError(t, r.Register("string", variant("string", true), signature.Of("String")))

	got, err := r.Call(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "number", got)
	require.Equal(t, []string{"int", "integer", "number"}, tried)
}

func TestRegistry_CallAllDecline(t *testing.T) {
	decline := func(ctx context.Context, args ...any) (any, error) {
		return nil, ErrNotHandled
	}
	r := New("f", numeric(t))
	require.NoError(t, r.Register("int", decline, signature.Of("Int")))
	require.NoError(t, r.Register("number", decline, signature.Of("Number")))

	_, err := r.Call(context.Background(), 7)
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	require.Equal(t, 2, unresolved.Declined)
	require.Contains(t, err.Error(), "2 matching variants declined")
}

func TestRegistry_MethodCall(t *testing.T) {
	type counter struct{ base int }

	r := New("add", numeric(t), WithMethod())
	require.True(t, r.IsMethod())
	require.NoError(t, r.Register("int", func(ctx context.Context, args ...any) (any, error) {
		return args[0].(*counter).base + args[1].(int), nil
	}, signature.Of("Int")))

	got, err := r.Call(context.Background(), &counter{base: 10}, 5)
	require.NoError(t, err)
	require.Equal(t, 15, got)

	_, err = r.Call(context.Background())
	require.ErrorIs(t, err, ErrMissingReceiver)
}

func TestRegistry_CallWithoutClassifier(t *testing.T) {
	rel := struct{ typetag.Provider }{numeric(t)}
	r := New("f", rel)
	require.NoError(t, r.Register("int", returns(1), signature.Of("Int")))

	_, err := r.Call(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoClassifier)

	r = New("f", rel, WithClassifier(numeric(t)))
	require.NoError(t, r.Register("int", returns(1), signature.Of("Int")))
	got, err := r.Call(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, got)
}

func TestRegistry_CacheDisabled(t *testing.T) {
	r := New("f", inheritance(t), WithCacheDisabled())
	mustAdd(t, r, "A", "a")

	for range 3 {
		_, err := r.Resolve(context.Background(), "D")
		require.NoError(t, err)
	}
	stats := r.Stats()
	require.EqualValues(t, 3, stats.Scans)
	require.Zero(t, stats.CacheHits)
}

func TestRegistry_Candidates(t *testing.T) {
	r := New("f", inheritance(t))
	mustAdd(t, r, "A", "a")
	mustAdd(t, r, "C", "c")
	mustAdd(t, r, "B", "b")

	var names []string
	for _, v := range r.Candidates("D") {
		names = append(names, v.Name)
	}
	require.Equal(t, []string{"c", "a"}, names)
	require.Empty(t, r.Candidates("B", "B"))
}

func TestRegistry_VariantsFollowOrdering(t *testing.T) {
	r := New("f", inheritance(t))
	mustAdd(t, r, "A", "a")
	mustAdd(t, r, "D", "d")
	mustAdd(t, r, "C", "c")

	var names []string
	for _, v := range r.Variants() {
		names = append(names, v.Name)
	}
	require.Equal(t, []string{"d", "c", "a"}, names)
}

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, exporter
}

func spanAttr(span tracetest.SpanStub, key string) (string, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value.Emit(), true
		}
	}
	return "", false
}

func TestRegistry_ResolveSpan(t *testing.T) {
	provider, exporter := setupTestTracer(t)
	r := New("f", inheritance(t), WithTracer(provider.Tracer("test")))
	mustAdd(t, r, "A", "a")

	_, err := r.Resolve(context.Background(), "C")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "C")
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	require.Equal(t, tracing.SpanResolve, spans[0].Name)

	variant, ok := spanAttr(spans[0], tracing.AttrVariant)
	require.True(t, ok)
	require.Equal(t, "a", variant)

	hit, _ := spanAttr(spans[0], tracing.AttrCacheHit)
	require.Equal(t, "false", hit)
	hit, _ = spanAttr(spans[1], tracing.AttrCacheHit)
	require.Equal(t, "true", hit)
}

func TestRegistry_CallSpanRecordsFallback(t *testing.T) {
	provider, exporter := setupTestTracer(t)
	r := New("f", numeric(t), WithTracer(provider.Tracer("test")))
	require.NoError(t, r.Register("int", func(ctx context.Context, args ...any) (any, error) {
		return nil, ErrNotHandled
	}, signature.Of("Int")))
	require.NoError(t, r.Register("number", returns("number"), signature.Of("Number")))

	_, err := r.Call(context.Background(), 3)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, tracing.SpanCall, spans[0].Name)

	var events []string
	for _, e := range spans[0].Events {
		events = append(events, e.Name)
	}
	require.Equal(t, []string{tracing.EventVariantDeclined, tracing.EventFallback}, events)
}

func TestRegistry_ConcurrentResolveAndAdd(t *testing.T) {
	r := New("f", inheritance(t), WithNotifier(NopNotifier{}))
	mustAdd(t, r, "A", "a")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for range 100 {
				v, err := r.Resolve(context.Background(), "D")
				if err != nil || (v.Name != "a" && v.Name != "c" && v.Name != "d") {
					t.Errorf("worker %d: unexpected resolution %v %v", i, v, err)
					return
				}
			}
		}(i)
	}
	mustAdd(t, r, "C", "c")
	mustAdd(t, r, "D", "d")
	wg.Wait()

	v, err := r.Resolve(context.Background(), "D")
	require.NoError(t, err)
	require.Equal(t, "d", v.Name)
}
