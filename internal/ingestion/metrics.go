package ingestion

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for pipeline runs.
var (
	tracer = otel.Tracer("aerialview.ingestion")
	meter  = otel.Meter("aerialview.ingestion")
)

// Metrics for pipeline runs.
var (
	runLatency      metric.Float64Histogram
	runTotal        metric.Int64Counter
	unitsAccepted   metric.Int64Histogram
	observationsAll metric.Int64Counter
	observationsOut metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"aerialview_run_duration_seconds",
			metric.WithDescription("Duration of analysis runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"aerialview_run_total",
			metric.WithDescription("Total number of analysis runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unitsAccepted, err = meter.Int64Histogram(
			"aerialview_units",
			metric.WithDescription("Number of units accumulated per run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		observationsAll, err = meter.Int64Counter(
			"aerialview_observations_total",
			metric.WithDescription("Reference observations fed into the graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		observationsOut, err = meter.Int64Counter(
			"aerialview_observations_dropped_total",
			metric.WithDescription("Reference observations dropped by the accumulator"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordRunMetrics records metrics for a finished run.
func recordRunMetrics(ctx context.Context, duration time.Duration, stats *PipelineResult, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)

	if !success || stats == nil {
		return
	}
	unitsAccepted.Record(ctx, int64(stats.Units))
	observationsAll.Add(ctx, int64(stats.Observations))
	observationsOut.Add(ctx, int64(stats.OutOfScope), metric.WithAttributes(attribute.String("reason", "out_of_scope")))
	observationsOut.Add(ctx, int64(stats.SelfReferences), metric.WithAttributes(attribute.String("reason", "self_reference")))
}

// startRunSpan creates a span for an analysis run.
func startRunSpan(ctx context.Context, dir string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ingestion.RunPipeline",
		trace.WithAttributes(attribute.String("aerialview.dir", dir)),
	)
}

// setRunSpanResult sets the result attributes on a run span.
func setRunSpanResult(span trace.Span, stats *PipelineResult) {
	span.SetAttributes(
		attribute.Int("aerialview.packages", stats.Packages),
		attribute.Int("aerialview.units", stats.Units),
		attribute.Int("aerialview.relationships", stats.Relationships),
		attribute.Int("aerialview.view_units", stats.ViewUnits),
		attribute.Bool("aerialview.truncated", stats.Truncated),
	)
}
