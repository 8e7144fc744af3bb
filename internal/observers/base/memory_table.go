package base

import (
	"context"
	"sync"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// MemoryTable is an in-process counter table. It backs the mock producers on
// platforms without eBPF and every test that needs a collaborator.
type MemoryTable struct {
	name string

	mu      sync.Mutex
	entries map[domain.Key]domain.Counters
}

// NewMemoryTable creates an empty table.
func NewMemoryTable(name string) *MemoryTable {
	return &MemoryTable{
		name:    name,
		entries: make(map[domain.Key]domain.Counters),
	}
}

// Name implements domain.CounterTable.
func (t *MemoryTable) Name() string { return t.name }

// Add accumulates c into key, the way the kernel program increments a map slot.
func (t *MemoryTable) Add(key domain.Key, c domain.Counters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.entries[key]
	cur.Add(c)
	t.entries[key] = cur
}

// Read implements domain.CounterTable.
func (t *MemoryTable) Read(_ context.Context) (map[domain.Key]domain.Counters, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[domain.Key]domain.Counters, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out, nil
}

// Clear implements domain.CounterTable.
func (t *MemoryTable) Clear(_ context.Context, keys []domain.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		delete(t.entries, k)
	}
	return nil
}

// Drain implements domain.Drainer.
func (t *MemoryTable) Drain(_ context.Context) (map[domain.Key]domain.Counters, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.entries
	t.entries = make(map[domain.Key]domain.Counters, len(out))
	return out, nil
}

// Len returns the number of present keys.
func (t *MemoryTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
