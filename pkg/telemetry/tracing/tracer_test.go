package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/mailsweep/pkg/config"
)

func newRecordingTracer(t *testing.T, ratio float64) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tr, err := newWithExporter(config.TracingConfig{Enabled: true, SampleRatio: ratio}, "test", exporter)
	if err != nil {
		t.Fatalf("newWithExporter() failed: %v", err)
	}
	return tr, exporter
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(context.Background(), config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if tr.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tr.Start(context.Background(), "cleanup.run")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("noop tracer produced a valid trace ID")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func TestNew_EnabledRequiresEndpoint(t *testing.T) {
	if _, err := New(context.Background(), config.TracingConfig{Enabled: true}, "test"); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestTracer_ExportsSpans(t *testing.T) {
	tr, exporter := newRecordingTracer(t, 1)

	ctx, run := tr.Tracer().Start(context.Background(), "cleanup.run")
	if TraceID(ctx) == "" {
		t.Error("expected a trace ID inside the run span")
	}
	_, category := tr.Start(ctx, "cleanup.category")
	SetStatus(category, errors.New("store unavailable"))
	category.End()
	SetStatus(run, nil)
	run.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	if byName["cleanup.category"].Parent.SpanID() != byName["cleanup.run"].SpanContext.SpanID() {
		t.Error("category span is not a child of the run span")
	}
	if byName["cleanup.category"].Status.Code != codes.Error {
		t.Errorf("category status = %v, want Error", byName["cleanup.category"].Status.Code)
	}
	if byName["cleanup.run"].Status.Code != codes.Ok {
		t.Errorf("run status = %v, want Ok", byName["cleanup.run"].Status.Code)
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  sdktrace.SamplingDecision
	}{
		{1, sdktrace.RecordAndSample},
		{2, sdktrace.RecordAndSample},
		{0, sdktrace.Drop},
		{-1, sdktrace.Drop},
	}
	for _, tt := range tests {
		res := NewSampler(tt.ratio).ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			Name:          "cleanup.run",
		})
		if res.Decision != tt.want {
			t.Errorf("ratio %v: decision = %v, want %v", tt.ratio, res.Decision, tt.want)
		}
	}
}

func TestHTTPMiddleware_ContinuesTrace(t *testing.T) {
	tr, exporter := newRecordingTracer(t, 1)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var seen string
	h := HTTPMiddleware(tr.Tracer(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("handler trace ID = %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != traceID {
		t.Errorf("X-Trace-ID = %q, want %q", got, traceID)
	}

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "admin GET /v1/stats" {
		t.Errorf("spans = %+v", spans)
	}
}

func TestInjectExtract(t *testing.T) {
	tr, _ := newRecordingTracer(t, 1)
	defer tr.Shutdown(context.Background())

	ctx, span := tr.Start(context.Background(), "cleanup.run")
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatal("Inject() wrote no traceparent header")
	}

	extracted := Extract(context.Background(), headers)
	if TraceID(extracted) != TraceID(ctx) {
		t.Errorf("Extract() trace ID = %q, want %q", TraceID(extracted), TraceID(ctx))
	}
}
