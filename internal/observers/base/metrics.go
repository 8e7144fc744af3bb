package base

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Instruments are the collector's own OTEL metrics. A nil instrument means
// creation failed; recording on it is skipped.
type Instruments struct {
	ticks             metric.Int64Counter
	aggregateDuration metric.Float64Histogram
	aggregateErrors   metric.Int64Counter
	pointsWritten     metric.Int64Counter
	sinkErrors        metric.Int64Counter
	sinkDrops         metric.Int64Counter
}

// NewInstruments registers instruments on the global meter provider.
func NewInstruments(prefix string, logger *zap.Logger) *Instruments {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter(prefix)
	in := &Instruments{}
	var err error

	in.ticks, err = meter.Int64Counter(
		fmt.Sprintf("%s_ticks_total", prefix),
		metric.WithDescription("Completed collection ticks per pipeline"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		// Log but don't fail - metrics are optional
		logger.Debug("Failed to create ticks counter", zap.Error(err))
		in.ticks = nil
	}

	in.aggregateDuration, err = meter.Float64Histogram(
		fmt.Sprintf("%s_aggregate_duration_seconds", prefix),
		metric.WithDescription("Time spent reading and clearing a counter table"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	if err != nil {
		logger.Debug("Failed to create aggregate duration histogram", zap.Error(err))
		in.aggregateDuration = nil
	}

	in.aggregateErrors, err = meter.Int64Counter(
		fmt.Sprintf("%s_aggregate_errors_total", prefix),
		metric.WithDescription("Counter table reads that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Debug("Failed to create aggregate errors counter", zap.Error(err))
		in.aggregateErrors = nil
	}

	in.pointsWritten, err = meter.Int64Counter(
		fmt.Sprintf("%s_points_written_total", prefix),
		metric.WithDescription("Metric points accepted by sinks"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		logger.Debug("Failed to create points written counter", zap.Error(err))
		in.pointsWritten = nil
	}

	in.sinkErrors, err = meter.Int64Counter(
		fmt.Sprintf("%s_sink_errors_total", prefix),
		metric.WithDescription("Metric points rejected by sinks"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		logger.Debug("Failed to create sink errors counter", zap.Error(err))
		in.sinkErrors = nil
	}

	in.sinkDrops, err = meter.Int64Counter(
		fmt.Sprintf("%s_sink_drops_total", prefix),
		metric.WithDescription("Metric points dropped by a full async sink queue"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		logger.Debug("Failed to create sink drops counter", zap.Error(err))
		in.sinkDrops = nil
	}

	return in
}

// RecordTick counts one tick of pipeline.
func (in *Instruments) RecordTick(ctx context.Context, pipeline string) {
	if in == nil || in.ticks == nil {
		return
	}
	in.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline", pipeline)))
}

// RecordAggregate records a table drain and its outcome.
func (in *Instruments) RecordAggregate(ctx context.Context, pipeline string, d time.Duration, err error) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("pipeline", pipeline))
	if in.aggregateDuration != nil {
		in.aggregateDuration.Record(ctx, d.Seconds(), attrs)
	}
	if err != nil && in.aggregateErrors != nil {
		in.aggregateErrors.Add(ctx, 1, attrs)
	}
}

// RecordWrite records points handed to sink and the rejected ones.
func (in *Instruments) RecordWrite(ctx context.Context, sink string, written, failed int) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("sink", sink))
	if in.pointsWritten != nil && written > 0 {
		in.pointsWritten.Add(ctx, int64(written), attrs)
	}
	if in.sinkErrors != nil && failed > 0 {
		in.sinkErrors.Add(ctx, int64(failed), attrs)
	}
}

// RecordDrop counts points an async sink discarded.
func (in *Instruments) RecordDrop(ctx context.Context, sink string) {
	if in == nil || in.sinkDrops == nil {
		return
	}
	in.sinkDrops.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
