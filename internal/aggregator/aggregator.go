// Package aggregator turns one counter table into a WindowSnapshot per tick:
// it copies the table, derives per-key and total rates over the wall-clock
// window, and clears what it copied.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

// DrainMode controls how a table is emptied after it has been copied.
type DrainMode string

const (
	// DrainClearAfterRead copies every entry, then deletes the copied keys.
	// A producer write landing between the two steps is lost for the window.
	DrainClearAfterRead DrainMode = "clear"
	// DrainAtomic looks up and deletes each entry in one step when the table
	// supports it, and falls back to DrainClearAfterRead otherwise.
	DrainAtomic DrainMode = "atomic"
)

// ParseDrainMode accepts "clear", "atomic" or "" (clear).
func ParseDrainMode(s string) (DrainMode, error) {
	switch DrainMode(s) {
	case "", DrainClearAfterRead:
		return DrainClearAfterRead, nil
	case DrainAtomic:
		return DrainAtomic, nil
	default:
		return "", domain.NewValidationError("drain_mode", s, "must be clear or atomic")
	}
}

// Config holds aggregator configuration
type Config struct {
	DrainMode DrainMode
	// Clock defaults to time.Now.
	Clock domain.Clock
}

// Aggregator drains one table. It is not safe for concurrent Aggregate calls;
// the collection loop is its only caller.
type Aggregator struct {
	table  domain.CounterTable
	spec   domain.TableSpec
	mode   DrainMode
	clock  domain.Clock
	logger *zap.Logger

	mu       sync.Mutex
	lastAt   time.Time
	fallback sync.Once
}

// New creates an aggregator for table described by spec.
func New(table domain.CounterTable, spec domain.TableSpec, cfg Config, logger *zap.Logger) (*Aggregator, error) {
	if table == nil {
		return nil, fmt.Errorf("counter table is required")
	}
	if spec.KeySpace == nil {
		return nil, domain.NewValidationError("key_space", nil, "must be bounded or discovered")
	}
	if n := spec.KeySpace.Size(); n > domain.MaxBoundedKeys {
		return nil, domain.NewValidationError("key_space", n,
			fmt.Sprintf("over the %d key limit", domain.MaxBoundedKeys))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.DrainMode == "" {
		cfg.DrainMode = DrainClearAfterRead
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		table:  table,
		spec:   spec,
		mode:   cfg.DrainMode,
		clock:  cfg.Clock,
		logger: logger.Named("aggregator").With(zap.String("table", table.Name())),
		lastAt: cfg.Clock(),
	}, nil
}

// Spec returns the table spec this aggregator was built with.
func (a *Aggregator) Spec() domain.TableSpec {
	return a.spec
}

// Start resets the window origin, typically right after instrumentation
// is attached.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastAt = a.clock()
}

// Aggregate copies the table, clears it and returns the window's snapshot.
// On error the window origin is kept, so the next successful call covers
// the failed window too.
func (a *Aggregator) Aggregate(ctx context.Context) (*domain.WindowSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, dist, err := a.drain(ctx)
	if err != nil {
		return nil, err
	}

	now := a.clock()
	window := now.Sub(a.lastAt)
	if window <= 0 {
		// A clock that did not advance would divide by zero.
		window = time.Nanosecond
	}
	a.lastAt = now

	snap := Build(a.spec, raw, now, window)
	snap.Distribution = dist
	return snap, nil
}

// drain empties the table. Tables with a distribution are always drained
// together with it, whatever the mode.
func (a *Aggregator) drain(ctx context.Context) (map[domain.Key]domain.Counters, *domain.Distribution, error) {
	if src, ok := a.table.(domain.DistributionSource); ok {
		raw, dist, err := src.DrainWithDistribution(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to drain %s: %w", a.table.Name(), err)
		}
		return raw, dist, nil
	}

	if a.mode == DrainAtomic {
		if d, ok := a.table.(domain.Drainer); ok {
			raw, err := d.Drain(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to drain %s: %w", a.table.Name(), err)
			}
			return raw, nil, nil
		}
		a.fallback.Do(func() {
			a.logger.Warn("Table cannot drain atomically, clearing after read")
		})
	}

	raw, err := a.table.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", a.table.Name(), err)
	}

	keys := make([]domain.Key, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	if err := a.table.Clear(ctx, keys); err != nil {
		// The copy is complete; a failed clear only double counts next window.
		a.logger.Warn("Failed to clear table", zap.Int("keys", len(keys)), zap.Error(err))
	}
	return raw, nil, nil
}

// Build derives a snapshot from raw counters. It is a pure function: rows
// follow spec's key space, totals are computed over summed raw counters.
func Build(spec domain.TableSpec, raw map[domain.Key]domain.Counters, at time.Time, window time.Duration) *domain.WindowSnapshot {
	seconds := window.Seconds()

	present := make([]domain.Key, 0, len(raw))
	for k := range raw {
		present = append(present, k)
	}
	keys := spec.KeySpace.Keys(present)

	snap := &domain.WindowSnapshot{
		Table:       spec.Name,
		Measurement: spec.Measurement,
		At:          at,
		Window:      window,
		Rows:        make([]domain.DerivedStat, 0, len(keys)),
	}

	var total domain.Counters
	for _, k := range keys {
		c := raw[k]
		total.Add(c)
		snap.Rows = append(snap.Rows, domain.Derive(k, c, seconds))
	}
	snap.Total = domain.Derive(domain.Key{}, total, seconds)
	return snap
}
