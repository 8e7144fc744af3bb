package sinks

import (
	"context"
	"sync"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// Memory keeps every accepted point. Hook, when set, runs before a point is
// accepted and can reject it.
type Memory struct {
	name string
	Hook func(point domain.MetricPoint) error

	mu     sync.Mutex
	points []domain.MetricPoint
	writes int
}

// NewMemory creates an empty memory sink.
func NewMemory(name string) *Memory {
	return &Memory{name: name}
}

// Name implements Sink.
func (m *Memory) Name() string { return m.name }

// Write implements Sink.
func (m *Memory) Write(_ context.Context, point domain.MetricPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.Hook != nil {
		if err := m.Hook(point); err != nil {
			return err
		}
	}
	m.points = append(m.points, point)
	return nil
}

// Points returns a copy of the accepted points.
func (m *Memory) Points() []domain.MetricPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MetricPoint, len(m.points))
	copy(out, m.points)
	return out
}

// Writes returns how many writes were attempted.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
