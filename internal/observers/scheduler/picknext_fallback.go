//go:build !linux
// +build !linux

package scheduler

import (
	"context"
	"time"

	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

type distTable = *base.MemoryTable

func newDistTable(name string) distTable {
	return base.NewMemoryTable(name)
}

type pickKernelState struct {
	lifecycle *base.LifecycleManager
}

// attachKernel starts a mock producer on platforms without eBPF
func (o *PickNextObserver) attachKernel(_ context.Context) error {
	o.logger.Warn("Pick-next tracing requires Linux with eBPF support, running in mock mode")

	ks := &pickKernelState{lifecycle: base.NewLifecycleManager(context.Background(), o.logger)}
	ks.lifecycle.Start("picknext-mock", func(ctx context.Context) {
		ticker := time.NewTicker(o.config.MockInterval)
		defer ticker.Stop()

		var round uint32
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				round++
				cpu := round % 4
				pid := 1000 + round%7
				o.dist.Add(domain.TaskKey(cpu, pid, pid), domain.Counters{Sum: uint64(800 + 50*(round%10)), Count: 1})
			}
		}
	})
	o.kernel = ks
	return nil
}

func (o *PickNextObserver) detachKernel() error {
	if o.kernel == nil {
		return nil
	}
	err := o.kernel.lifecycle.Stop(time.Second)
	o.kernel = nil
	return err
}
