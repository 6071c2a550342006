package tracing

// Span attribute keys for dispatch tracing.
const (
	AttrOperation  = "dispatch.operation"
	AttrRegistryID = "dispatch.registry_id"
	AttrTypes      = "dispatch.types"
	AttrVariant    = "dispatch.variant"
	AttrSignature  = "dispatch.signature"
	AttrCacheHit   = "dispatch.cache_hit"
	AttrMethod     = "dispatch.method"
	AttrDeclined   = "dispatch.declined"
)

// Span names.
const (
	SpanResolve = "dispatch.resolve"
	SpanCall    = "dispatch.call"
)

// Event names for span events.
const (
	EventVariantDeclined = "variant.declined"
	EventFallback        = "variant.fallback"
)
