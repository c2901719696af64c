package joinql

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/arllen133/joinql"
	meterName  = "github.com/arllen133/joinql"
)

// Metrics holds the OpenTelemetry metric instruments
type Metrics struct {
	BuildCount    metric.Int64Counter
	BuildDuration metric.Float64Histogram
	BuildErrors   metric.Int64Counter
	JoinNodes     metric.Int64Histogram
}

// ObservabilityConfig holds logging, tracing, and metrics configuration
type ObservabilityConfig struct {
	Logger             *slog.Logger
	Tracer             trace.Tracer
	Meter              metric.Meter
	Metrics            *Metrics
	SlowBuildThreshold time.Duration
	LogBuilds          bool // Log every rendered query (debug mode)
}

// defaultObservabilityConfig returns a config with no logging/tracing/metrics
func defaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		SlowBuildThreshold: 10 * time.Millisecond,
	}
}

// BuilderOption configures a CriteriaBuilder
type BuilderOption func(*CriteriaBuilder)

// WithLogger sets the logger for the builder and its join manager
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *CriteriaBuilder) {
		b.obs.Logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer for the builder
func WithTracer(tracer trace.Tracer) BuilderOption {
	return func(b *CriteriaBuilder) {
		b.obs.Tracer = tracer
	}
}

// WithDefaultTracer uses the global OpenTelemetry tracer
func WithDefaultTracer() BuilderOption {
	return func(b *CriteriaBuilder) {
		b.obs.Tracer = otel.Tracer(tracerName)
	}
}

// WithMeter sets the OpenTelemetry meter for metrics
func WithMeter(meter metric.Meter) BuilderOption {
	return func(b *CriteriaBuilder) {
		b.obs.Meter = meter
		b.obs.Metrics = initMetrics(meter)
	}
}

// WithDefaultMeter uses the global OpenTelemetry meter
func WithDefaultMeter() BuilderOption {
	return func(b *CriteriaBuilder) {
		meter := otel.Meter(meterName)
		b.obs.Meter = meter
		b.obs.Metrics = initMetrics(meter)
	}
}

// WithSlowBuildThreshold sets the duration above which a build is logged
// as slow
func WithSlowBuildThreshold(d time.Duration) BuilderOption {
	return func(b *CriteriaBuilder) {
		b.obs.SlowBuildThreshold = d
	}
}

// WithBuildLogging enables logging of every rendered query
func WithBuildLogging(enabled bool) BuilderOption {
	return func(b *CriteriaBuilder) {
		b.obs.LogBuilds = enabled
	}
}

// withObservability shares an existing config, used by subqueries and copies
func withObservability(obs *ObservabilityConfig) BuilderOption {
	return func(b *CriteriaBuilder) {
		b.obs = obs
	}
}

// initMetrics creates all metric instruments
func initMetrics(meter metric.Meter) *Metrics {
	buildCount, _ := meter.Int64Counter("joinql.build.count",
		metric.WithDescription("Total number of queries built"),
		metric.WithUnit("{query}"),
	)

	buildDuration, _ := meter.Float64Histogram("joinql.build.duration",
		metric.WithDescription("Query build duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50),
	)

	buildErrors, _ := meter.Int64Counter("joinql.build.errors",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{error}"),
	)

	joinNodes, _ := meter.Int64Histogram("joinql.join.nodes",
		metric.WithDescription("Number of join nodes rendered per query"),
		metric.WithUnit("{node}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32, 64),
	)

	return &Metrics{
		BuildCount:    buildCount,
		BuildDuration: buildDuration,
		BuildErrors:   buildErrors,
		JoinNodes:     joinNodes,
	}
}

// spanWrapper wraps a trace.Span to handle nil spans gracefully
type spanWrapper struct {
	span trace.Span
}

func (w spanWrapper) End() {
	if w.span != nil {
		w.span.End()
	}
}

func (w spanWrapper) RecordError(err error) {
	if w.span != nil {
		w.span.RecordError(err)
	}
}

func (w spanWrapper) SetStatus(code codes.Code, description string) {
	if w.span != nil {
		w.span.SetStatus(code, description)
	}
}

func (w spanWrapper) SetAttributes(kv ...attribute.KeyValue) {
	if w.span != nil {
		w.span.SetAttributes(kv...)
	}
}

// startSpan starts a new span if tracing is enabled
func (b *CriteriaBuilder) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, spanWrapper) {
	if b.obs.Tracer == nil {
		return ctx, spanWrapper{nil}
	}
	ctx, span := b.obs.Tracer.Start(ctx, name, opts...)
	return ctx, spanWrapper{span}
}

// recordMetrics records build metrics if metrics are enabled
func (b *CriteriaBuilder) recordMetrics(ctx context.Context, duration time.Duration, nodes int, err error) {
	if b.obs.Metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("joinql.dialect", b.jm.Dialect().Name()),
	)

	b.obs.Metrics.BuildCount.Add(ctx, 1, attrs)
	b.obs.Metrics.BuildDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)

	if err != nil {
		b.obs.Metrics.BuildErrors.Add(ctx, 1, attrs)
		return
	}
	b.obs.Metrics.JoinNodes.Record(ctx, int64(nodes), attrs)
}

// logBuild logs a finished build
func (b *CriteriaBuilder) logBuild(ctx context.Context, query string, duration time.Duration, err error) {
	if b.obs.Logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("builder", b.id),
		slog.Duration("duration", duration),
	}

	if b.obs.LogBuilds {
		attrs = append(attrs, slog.String("query", query))
	}

	if err != nil {
		b.obs.Logger.LogAttrs(ctx, slog.LevelError, "build failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}

	if duration > b.obs.SlowBuildThreshold {
		b.obs.Logger.LogAttrs(ctx, slog.LevelWarn, "slow build", attrs...)
		return
	}

	if b.obs.LogBuilds {
		b.obs.Logger.LogAttrs(ctx, slog.LevelDebug, "query built", attrs...)
	}
}
