package revalcache

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Options tune the cache. Only Backend is required; others have sensible
// defaults.
//
// A Cache holds the process-wide coordinator, registry and tag fallback, so
// a host should build one at startup and hand it to every component that
// renders or fetches.
type Options struct {
	// Required
	Backend Backend

	Logger         Logger              // if nil, NopLogger is used
	Hooks          Hooks               // if nil, NopHooks is used
	TracerProvider trace.TracerProvider // if nil, otel.GetTracerProvider()

	RegistryCapacity     int           // 0 => DefaultRegistryCapacity
	StaleWhileRevalidate time.Duration // Cache-Control swr window; 0 => open-ended
	SharedTagFallback    bool          // collect tags in one shared list when ctx has no scope
	Disabled             bool          // default false (enabled)
}

func New(opts Options) (*Cache, error) {
	return newCache(opts)
}

func tracerFrom(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}
