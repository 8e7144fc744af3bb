package orchestrator

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/ktelemetry/internal/aggregator"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/output"
)

// State is the lifecycle position of a Controller.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Pipeline is one table's path through a tick: aggregate, format, route.
type Pipeline struct {
	// Name is unique per controller and labels stats and self-metrics.
	Name       string
	Aggregator *aggregator.Aggregator
	Router     *output.Router
}

// Config holds controller configuration
type Config struct {
	// Interval between ticks. Must be > 0.
	Interval time.Duration

	// Iterations is the tick budget; 0 runs until cancelled.
	Iterations int

	// ShutdownTimeout bounds flushing sinks while stopping (default: 5s)
	ShutdownTimeout time.Duration

	// Console receives one block per tick. Nil disables console output.
	Console *output.Console

	// Instruments records self-metrics. Nil disables them.
	Instruments *base.Instruments

	// Clock stamps the console tick header (default: time.Now).
	Clock func() time.Time

	// TracerProvider creates the tick spans (default: the global provider).
	TracerProvider trace.TracerProvider

	// OnStateChange is called after every lifecycle transition.
	OnStateChange func(State)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Interval:        time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}
