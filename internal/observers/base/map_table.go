package base

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cilium/ebpf"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// ErrTableDetached is returned when a kernel table is used before Attach or
// after Detach.
var ErrTableDetached = errors.New("kernel table not attached")

// MapCodec converts between a BPF map's key/value layout and the domain.
type MapCodec[K comparable, V any] struct {
	// Decode turns one map entry into a domain key and counters.
	Decode func(k K, v V) (domain.Key, domain.Counters)
	// Encode rebuilds the map key for a domain key.
	Encode func(key domain.Key) K
}

// MapTable exposes a BPF hash map as a CounterTable. The map is bound at
// attach time; reads before that fail with ErrTableDetached.
type MapTable[K comparable, V any] struct {
	name  string
	codec MapCodec[K, V]
	m     atomic.Pointer[ebpf.Map]

	// noLookupAndDelete is set the first time the kernel rejects
	// BPF_MAP_LOOKUP_AND_DELETE_ELEM on a hash map (before 5.14).
	noLookupAndDelete atomic.Bool
	mu                sync.Mutex
}

// NewMapTable creates an unbound table.
func NewMapTable[K comparable, V any](name string, codec MapCodec[K, V]) *MapTable[K, V] {
	return &MapTable[K, V]{name: name, codec: codec}
}

// Name implements domain.CounterTable.
func (t *MapTable[K, V]) Name() string { return t.name }

// Bind attaches the table to m. Bind(nil) detaches it.
func (t *MapTable[K, V]) Bind(m *ebpf.Map) {
	t.m.Store(m)
}

// Read implements domain.CounterTable.
func (t *MapTable[K, V]) Read(ctx context.Context) (map[domain.Key]domain.Counters, error) {
	m := t.m.Load()
	if m == nil {
		return nil, fmt.Errorf("%s: %w", t.name, ErrTableDetached)
	}

	out := make(map[domain.Key]domain.Counters)
	var (
		k K
		v V
	)
	it := m.Iterate()
	for it.Next(&k, &v) {
		key, c := t.codec.Decode(k, v)
		out[key] = c
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", t.name, err)
	}
	return out, nil
}

// Clear implements domain.CounterTable.
func (t *MapTable[K, V]) Clear(_ context.Context, keys []domain.Key) error {
	m := t.m.Load()
	if m == nil {
		return fmt.Errorf("%s: %w", t.name, ErrTableDetached)
	}

	var errs []error
	for _, key := range keys {
		k := t.codec.Encode(key)
		if err := m.Delete(&k); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			errs = append(errs, fmt.Errorf("deleting %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Drain implements domain.Drainer: keys are listed first, then every entry
// is looked up and deleted in one syscall.
func (t *MapTable[K, V]) Drain(ctx context.Context) (map[domain.Key]domain.Counters, error) {
	m := t.m.Load()
	if m == nil {
		return nil, fmt.Errorf("%s: %w", t.name, ErrTableDetached)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		k    K
		v    V
		keys []K
	)
	it := m.Iterate()
	for it.Next(&k, &v) {
		keys = append(keys, k)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", t.name, err)
	}

	out := make(map[domain.Key]domain.Counters, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var val V
		if err := t.takeEntry(m, &key, &val); err != nil {
			if errors.Is(err, ebpf.ErrKeyNotExist) {
				continue
			}
			return nil, fmt.Errorf("draining %s: %w", t.name, err)
		}
		dk, c := t.codec.Decode(key, val)
		out[dk] = c
	}
	return out, nil
}

func (t *MapTable[K, V]) takeEntry(m *ebpf.Map, key *K, val *V) error {
	if !t.noLookupAndDelete.Load() {
		err := m.LookupAndDelete(key, val)
		if !errors.Is(err, ebpf.ErrNotSupported) {
			return err
		}
		t.noLookupAndDelete.Store(true)
	}
	if err := m.Lookup(key, val); err != nil {
		return err
	}
	return m.Delete(key)
}
