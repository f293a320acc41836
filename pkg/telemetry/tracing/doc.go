// Package tracing sets up OpenTelemetry tracing for the mailsweep daemon.
//
// Each cleanup run is one trace: the engine opens a cleanup.run span and a
// cleanup.category child span per policy it processes. Spans are exported
// over OTLP gRPC when enabled, and the tracer is a noop otherwise.
//
//	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	engine := retention.NewEngine(retention.Deps{..., Tracer: tracer.Tracer()}, engineCfg)
//
// Trace context uses W3C traceparent headers. Admin requests continue any
// incoming trace through HTTPMiddleware and webhook notifications carry the
// run's context through Inject.
package tracing
