package base

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// PipelineStats tracks one pipeline's ticks and failures. Counters are atomic
// so a health endpoint can read them while the loop runs.
type PipelineStats struct {
	name      string
	startTime time.Time

	ticks          atomic.Int64
	pointsWritten  atomic.Int64
	aggregateFails atomic.Int64
	sinkFails      atomic.Int64

	lastTick  atomic.Value // time.Time
	lastError atomic.Value // string

	errorRateThreshold float64
}

// NewPipelineStats creates stats for pipeline name.
func NewPipelineStats(name string) *PipelineStats {
	s := &PipelineStats{
		name:               name,
		startTime:          time.Now(),
		errorRateThreshold: 0.1,
	}
	s.lastTick.Store(time.Time{})
	s.lastError.Store("")
	return s
}

// RecordTick marks a completed tick.
func (s *PipelineStats) RecordTick(at time.Time) {
	s.ticks.Add(1)
	s.lastTick.Store(at)
}

// RecordPoints counts points accepted by sinks.
func (s *PipelineStats) RecordPoints(n int) {
	s.pointsWritten.Add(int64(n))
}

// RecordAggregateError counts a failed aggregation.
func (s *PipelineStats) RecordAggregateError(err error) {
	s.aggregateFails.Add(1)
	s.lastError.Store(err.Error())
}

// RecordSinkError counts a rejected point.
func (s *PipelineStats) RecordSinkError(err error) {
	s.sinkFails.Add(1)
	s.lastError.Store(err.Error())
}

// Ticks returns completed ticks.
func (s *PipelineStats) Ticks() int64 { return s.ticks.Load() }

// PointsWritten returns points accepted by sinks.
func (s *PipelineStats) PointsWritten() int64 { return s.pointsWritten.Load() }

// SinkErrors returns rejected points.
func (s *PipelineStats) SinkErrors() int64 { return s.sinkFails.Load() }

// AggregateErrors returns failed aggregations.
func (s *PipelineStats) AggregateErrors() int64 { return s.aggregateFails.Load() }

// Health derives a health status from the error rate.
func (s *PipelineStats) Health() *domain.HealthStatus {
	ticks := s.ticks.Load()
	aggFails := s.aggregateFails.Load()
	sinkFails := s.sinkFails.Load()
	points := s.pointsWritten.Load()

	var status *domain.HealthStatus
	switch {
	case ticks == 0 && aggFails == 0:
		status = domain.NewHealthStatus(domain.HealthUnknown, fmt.Sprintf("%s has not ticked yet", s.name))
	case aggFails > 0 && ticks == 0:
		status = domain.NewHealthStatus(domain.HealthUnhealthy, fmt.Sprintf("%s cannot read its table", s.name))
	default:
		status = domain.NewHealthyStatus(fmt.Sprintf("%s operating normally", s.name))
		attempts := points + sinkFails
		if attempts > 0 {
			rate := float64(sinkFails) / float64(attempts)
			if rate > s.errorRateThreshold {
				status = domain.NewHealthStatus(domain.HealthDegraded,
					fmt.Sprintf("High sink error rate: %.1f%% (threshold: %.1f%%)",
						rate*100, s.errorRateThreshold*100))
			}
		}
	}

	status.Component = s.name
	status.Ticks = ticks
	status.PointsWritten = points
	status.ErrorCount = aggFails + sinkFails
	if t, ok := s.lastTick.Load().(time.Time); ok {
		status.LastTick = t
	}
	if e, ok := s.lastError.Load().(string); ok {
		status.LastErrorText = e
	}
	return status
}

// Uptime returns how long the pipeline has existed.
func (s *PipelineStats) Uptime() time.Duration {
	return time.Since(s.startTime)
}
