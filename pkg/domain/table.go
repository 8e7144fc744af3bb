package domain

import (
	"context"
	"time"
)

// CounterTable is a keyed accumulator written by kernel instrumentation and
// drained by the aggregator once per window. Implementations must tolerate
// concurrent producer writes; the read+clear pair is not atomic.
type CounterTable interface {
	// Name identifies the table in logs and console titles.
	Name() string
	// Read copies every present entry.
	Read(ctx context.Context) (map[Key]Counters, error)
	// Clear removes the given keys. Keys already gone are ignored.
	Clear(ctx context.Context, keys []Key) error
}

// Drainer is implemented by tables that can read and delete each entry in
// one step, closing the lost-update window per key.
type Drainer interface {
	Drain(ctx context.Context) (map[Key]Counters, error)
}

// Distribution summarises the individual samples of an event-pushed table
// for one window.
type Distribution struct {
	Samples int64
	Min     int64
	Max     int64
	Mean    float64
	P50     int64
	P90     int64
	P99     int64
}

// DistributionSource is implemented by tables that keep per-sample values
// (event-pushed sources). DrainWithDistribution empties the rows and the
// distribution together, so both cover the same samples.
type DistributionSource interface {
	DrainWithDistribution(ctx context.Context) (map[Key]Counters, *Distribution, error)
}

// Collaborator is the kernel-instrumentation side of one or more tables.
type Collaborator interface {
	// Name identifies the collaborator.
	Name() string
	// Validate checks the requested targets exist. It must not acquire any
	// kernel resource.
	Validate() error
	// Attach loads and attaches instrumentation.
	Attach(ctx context.Context) error
	// Detach releases everything Attach acquired.
	Detach() error
}

// Clock returns the current instant. Injected so window math is testable.
type Clock func() time.Time
