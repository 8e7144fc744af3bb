package domain

import (
	"fmt"
	"sort"
)

// MaxKeyFields is the number of uint32 components a table key can carry.
const MaxKeyFields = 3

// MaxBoundedKeys is the largest bounded key space a collaborator may declare.
const MaxBoundedKeys = 1024

// Key identifies one row of a counter table. Components not named by the
// table's KeyFields stay zero.
//
//	queue table:     Key{queueID}
//	pick latency:    Key{cpu, pid, tgid}
//	run-queue hist:  Key{length}
type Key [MaxKeyFields]uint32

// QueueKey builds the key for a transmit or receive queue id.
func QueueKey(id uint16) Key {
	return Key{uint32(id)}
}

// TaskKey builds the key for a scheduling latency sample origin.
func TaskKey(cpu, pid, tgid uint32) Key {
	return Key{cpu, pid, tgid}
}

// Less orders keys component by component.
func (k Key) Less(o Key) bool {
	for i := 0; i < MaxKeyFields; i++ {
		if k[i] != o[i] {
			return k[i] < o[i]
		}
	}
	return false
}

// String renders all components separated by "/".
func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k[0], k[1], k[2])
}

// SortKeys sorts keys ascending in place.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Counters is the accumulator record stored per key. Sum carries bytes or
// nanoseconds, Count carries packets or samples.
type Counters struct {
	Sum   uint64
	Count uint64
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.Sum += o.Sum
	c.Count += o.Count
}

// IsZero reports whether nothing was recorded.
func (c Counters) IsZero() bool {
	return c.Sum == 0 && c.Count == 0
}

// KeySpace decides which keys a snapshot must contain.
type KeySpace interface {
	// Keys returns the rows a snapshot must carry given the keys present in
	// the table. The result is sorted ascending.
	Keys(present []Key) []Key
	// Size is the declared size, or 0 when keys are discovered.
	Size() int
}

// BoundedKeySpace covers ids [0, N). Missing ids are zero-filled.
type BoundedKeySpace struct {
	N int
}

// Keys ignores present keys and always returns the full declared range.
func (b BoundedKeySpace) Keys(_ []Key) []Key {
	keys := make([]Key, b.N)
	for i := 0; i < b.N; i++ {
		keys[i] = Key{uint32(i)}
	}
	return keys
}

// Size returns N.
func (b BoundedKeySpace) Size() int { return b.N }

// DiscoveredKeySpace has no expected universe: only present keys are reported.
type DiscoveredKeySpace struct{}

// Keys returns a sorted copy of present.
func (DiscoveredKeySpace) Keys(present []Key) []Key {
	keys := make([]Key, len(present))
	copy(keys, present)
	SortKeys(keys)
	return keys
}

// Size is always 0 for discovered key spaces.
func (DiscoveredKeySpace) Size() int { return 0 }
