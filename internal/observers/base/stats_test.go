package base

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

func TestPipelineStatsHealth(t *testing.T) {
	t.Run("unknown before first tick", func(t *testing.T) {
		s := NewPipelineStats("nic-tx")
		assert.Equal(t, domain.HealthUnknown, s.Health().Status)
	})

	t.Run("healthy", func(t *testing.T) {
		s := NewPipelineStats("nic-tx")
		s.RecordTick(time.Now())
		s.RecordPoints(5)
		h := s.Health()
		assert.Equal(t, domain.HealthHealthy, h.Status)
		assert.Equal(t, int64(1), h.Ticks)
		assert.Equal(t, int64(5), h.PointsWritten)
		assert.Equal(t, "nic-tx", h.Component)
	})

	t.Run("degraded on sink errors", func(t *testing.T) {
		s := NewPipelineStats("picknext")
		s.RecordTick(time.Now())
		s.RecordPoints(1)
		s.RecordSinkError(errors.New("influx down"))
		h := s.Health()
		assert.Equal(t, domain.HealthDegraded, h.Status)
		assert.Equal(t, "influx down", h.LastErrorText)
		assert.Equal(t, int64(1), s.SinkErrors())
	})

	t.Run("unhealthy when table never read", func(t *testing.T) {
		s := NewPipelineStats("runqlen")
		s.RecordAggregateError(errors.New("map closed"))
		assert.Equal(t, domain.HealthUnhealthy, s.Health().Status)
		assert.Equal(t, int64(1), s.AggregateErrors())
	})
}
