package famamacbeth

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "megacap.famamacbeth"
)

// Instruments records spans and counters for the estimation stages. It uses
// the global providers, so it is a no-op until telemetry is initialised.
type Instruments struct {
	tracer    trace.Tracer
	estimated metric.Int64Counter
	skipped   metric.Int64Counter
	premia    metric.Float64Histogram
}

// NewInstruments creates the stage instruments on the global meter.
func NewInstruments() (*Instruments, error) {
	meter := otel.Meter(TracerName)

	estimated, err := meter.Int64Counter("famamacbeth_estimated_total",
		metric.WithDescription("Entities or dates estimated, by stage and methodology"))
	if err != nil {
		return nil, fmt.Errorf("failed to create estimated counter: %w", err)
	}
	skipped, err := meter.Int64Counter("famamacbeth_skipped_total",
		metric.WithDescription("Entities or dates skipped, by stage, methodology and reason"))
	if err != nil {
		return nil, fmt.Errorf("failed to create skipped counter: %w", err)
	}
	premia, err := meter.Float64Histogram("famamacbeth_premium_tstat",
		metric.WithDescription("t-statistics of aggregated premia"))
	if err != nil {
		return nil, fmt.Errorf("failed to create premium histogram: %w", err)
	}

	return &Instruments{
		tracer:    otel.Tracer(TracerName),
		estimated: estimated,
		skipped:   skipped,
		premia:    premia,
	}, nil
}

// StartStage opens a span for one stage of one methodology.
func (in *Instruments) StartStage(ctx context.Context, methodology, stage string) (context.Context, trace.Span) {
	if in == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return in.tracer.Start(ctx, fmt.Sprintf("famamacbeth.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("methodology", methodology),
			attribute.String("stage", stage),
		),
	)
}

// RecordDiagnostics adds a stage's counts to the counters and the span.
func (in *Instruments) RecordDiagnostics(ctx context.Context, span trace.Span, methodology, stage string, d Diagnostics) {
	span.SetAttributes(
		attribute.Int("attempted", d.Attempted),
		attribute.Int("estimated", d.Estimated),
		attribute.Int("skipped", d.SkippedTotal()),
	)
	if in == nil {
		return
	}
	base := []attribute.KeyValue{
		attribute.String("methodology", methodology),
		attribute.String("stage", stage),
	}
	in.estimated.Add(ctx, int64(d.Estimated), metric.WithAttributes(base...))
	for _, r := range d.Reasons() {
		attrs := append(append([]attribute.KeyValue(nil), base...),
			attribute.String("reason", string(r)),
			attribute.String("category", r.Category()))
		in.skipped.Add(ctx, int64(d.Count(r)), metric.WithAttributes(attrs...))
		span.AddEvent("skipped", trace.WithAttributes(
			attribute.String("reason", string(r)),
			attribute.Int("count", d.Count(r)),
		))
	}
}

// RecordPremia records the t-statistics of the defined premia.
func (in *Instruments) RecordPremia(ctx context.Context, span trace.Span, methodology string, premia []Premium) {
	for _, p := range premia {
		span.SetAttributes(attribute.Float64(fmt.Sprintf("premium.%s.annual", p.Factor), p.AnnualMean))
		if in == nil || !p.Defined {
			continue
		}
		in.premia.Record(ctx, p.TStat, metric.WithAttributes(
			attribute.String("methodology", methodology),
			attribute.String("factor", p.Factor),
		))
	}
}

// EndStage closes a span, marking it failed when err is not nil.
func EndStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
