package scheduler

import (
	"encoding/binary"
	"fmt"

	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// Names of maps in the BPF objects.
const (
	distMapName   = "dist"
	resultMapName = "result"
)

// taskKey mirrors struct key_t in bpf_src/picknext.c.
type taskKey struct {
	CPU  uint32
	PID  uint32
	TGID uint32
}

// latencyValue mirrors struct latency_t in bpf_src/picknext.c.
type latencyValue struct {
	TotalNs uint64
	Count   uint64
}

var taskCodec = base.MapCodec[taskKey, latencyValue]{
	Decode: func(k taskKey, v latencyValue) (domain.Key, domain.Counters) {
		return domain.TaskKey(k.CPU, k.PID, k.TGID), domain.Counters{Sum: v.TotalNs, Count: v.Count}
	},
	Encode: func(key domain.Key) taskKey {
		return taskKey{CPU: key[0], PID: key[1], TGID: key[2]}
	},
}

// runqSampleSize is sizeof(struct runq_sample) in bpf_src/runqlen.c.
const runqSampleSize = 8

// decodeRunQSample returns the run-queue length of one perf record.
func decodeRunQSample(raw []byte) (uint32, error) {
	if len(raw) < runqSampleSize {
		return 0, fmt.Errorf("short run-queue sample: %d bytes", len(raw))
	}
	return binary.LittleEndian.Uint32(raw[0:4]), nil
}
