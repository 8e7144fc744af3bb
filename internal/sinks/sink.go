// Package sinks delivers metric points to their destination. A sink is
// constructed explicitly and handed to the collection loop; there is no
// process-wide client.
package sinks

import (
	"context"
	"io"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// Sink persists or displays metric points.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Write delivers one point. A returned error is reported and the
	// collection loop continues.
	Write(ctx context.Context, point domain.MetricPoint) error
}

// Flusher is implemented by sinks that buffer points.
type Flusher interface {
	Flush(ctx context.Context) error
}

// WindowStarter is implemented by sinks that keep the latest value of every
// series. BeginWindow forgets the series of measurement whose tags include
// scope, so keys missing from the new window stop being exported.
type WindowStarter interface {
	BeginWindow(measurement string, scope map[string]string)
}

// BeginWindow starts a new window on s if it keeps series state.
func BeginWindow(s Sink, measurement string, scope map[string]string) {
	if w, ok := s.(WindowStarter); ok {
		w.BeginWindow(measurement, scope)
	}
}

// Flush flushes s if it buffers.
func Flush(ctx context.Context, s Sink) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Close closes s if it holds resources.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
