package base

import (
	"context"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// HDR range for run-queue style samples: 1 to 1M, 3 significant figures.
const (
	eventHistMin    = 1
	eventHistMax    = 1_000_000
	eventHistSigFig = 3
)

// EventTable accumulates individually pushed samples (perf-buffer sources)
// into a windowed table. Each sample increments the Count of its bucket key
// and is recorded in an HDR histogram for the window's percentiles.
type EventTable struct {
	name string

	mu      sync.Mutex
	entries map[domain.Key]domain.Counters
	hist    *hdrhistogram.Histogram
	dropped int64
	lost    uint64
}

// NewEventTable creates an empty event table.
func NewEventTable(name string) *EventTable {
	return &EventTable{
		name:    name,
		entries: make(map[domain.Key]domain.Counters),
		hist:    hdrhistogram.New(eventHistMin, eventHistMax, eventHistSigFig),
	}
}

// Name implements domain.CounterTable.
func (t *EventTable) Name() string { return t.name }

// Record adds one sample. The bucket key is the sample value itself.
func (t *EventTable) Record(value uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := domain.Key{value}
	cur := t.entries[key]
	cur.Add(domain.Counters{Sum: uint64(value), Count: 1})
	t.entries[key] = cur

	if err := t.hist.RecordValue(int64(value)); err != nil {
		t.dropped++
	}
}

// Read implements domain.CounterTable.
func (t *EventTable) Read(_ context.Context) (map[domain.Key]domain.Counters, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[domain.Key]domain.Counters, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out, nil
}

// Clear implements domain.CounterTable.
func (t *EventTable) Clear(_ context.Context, keys []domain.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		delete(t.entries, k)
	}
	return nil
}

// Drain implements domain.Drainer. The distribution is reset with the rows.
func (t *EventTable) Drain(ctx context.Context) (map[domain.Key]domain.Counters, error) {
	out, _, err := t.DrainWithDistribution(ctx)
	return out, err
}

// DrainWithDistribution implements domain.DistributionSource.
func (t *EventTable) DrainWithDistribution(_ context.Context) (map[domain.Key]domain.Counters, *domain.Distribution, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.entries
	t.entries = make(map[domain.Key]domain.Counters, len(out))
	return out, t.takeDistribution(), nil
}

// takeDistribution summarizes and resets the histogram. Callers hold mu.
func (t *EventTable) takeDistribution() *domain.Distribution {
	h := t.hist
	d := &domain.Distribution{
		Samples: h.TotalCount(),
	}
	if d.Samples > 0 {
		d.Min = h.Min()
		d.Max = h.Max()
		d.Mean = h.Mean()
		d.P50 = h.ValueAtQuantile(50)
		d.P90 = h.ValueAtQuantile(90)
		d.P99 = h.ValueAtQuantile(99)
	}
	h.Reset()
	return d
}

// Dropped returns samples outside the histogram range.
func (t *EventTable) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// AddLost counts samples the kernel discarded before they were read.
func (t *EventTable) AddLost(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lost += n
}

// Lost returns samples the kernel discarded.
func (t *EventTable) Lost() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lost
}
