package dispatch

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Option configures a Registry.
type Option func(*Registry)

// WithNotifier sets the sink for ambiguity reports and rejected
// registrations. The default is LogNotifier.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

// WithClassifier sets how Call maps argument values onto tags. By default
// the provider is used when it also implements typetag.Classifier.
func WithClassifier(c typetag.Classifier) Option {
	return func(r *Registry) {
		r.classifier = c
	}
}

// WithTracer sets the tracer used for resolve and call spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = t
	}
}

// WithMethod marks the registry as a method dispatcher: the first call
// argument is the receiver. It is excluded from dispatch and passed to the
// variant unchanged.
func WithMethod() Option {
	return func(r *Registry) {
		r.method = true
	}
}

// WithCacheExpiration bounds how long a resolution stays cached. The
// default keeps entries until the next registration.
func WithCacheExpiration(d time.Duration) Option {
	return func(r *Registry) {
		r.ttl = d
	}
}

// WithCacheDisabled resolves every call against the ordering.
func WithCacheDisabled() Option {
	return func(r *Registry) {
		r.skipCache = true
	}
}

// WithSuggestions controls whether ambiguity reports carry suggested
// disambiguating signatures.
func WithSuggestions(enabled bool) Option {
	return func(r *Registry) {
		r.suggest = enabled
	}
}
