package tracing

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewSampler builds a parent-based sampler from a sample ratio.
//
// A ratio of 1 or more samples every run, 0 or less samples none, and
// anything in between samples by trace ID so a run and its category spans
// share one decision:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sample_ratio: 0.25
func NewSampler(ratio float64) sdktrace.Sampler {
	var base sdktrace.Sampler
	switch {
	case ratio >= 1:
		base = sdktrace.AlwaysSample()
	case ratio <= 0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(base)
}
