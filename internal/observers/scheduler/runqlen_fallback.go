//go:build !linux
// +build !linux

package scheduler

import (
	"context"
	"time"

	"github.com/yairfalse/ktelemetry/internal/observers/base"
)

type runqKernelState struct {
	lifecycle *base.LifecycleManager
}

// attachKernel starts a mock sampler on platforms without eBPF
func (o *RunQLenObserver) attachKernel(_ context.Context) error {
	o.logger.Warn("Run-queue sampling requires Linux with eBPF support, running in mock mode")

	ks := &runqKernelState{lifecycle: base.NewLifecycleManager(context.Background(), o.logger)}
	ks.lifecycle.Start("runqlen-mock", func(ctx context.Context) {
		ticker := time.NewTicker(o.config.MockInterval)
		defer ticker.Stop()

		var round uint32
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				round++
				o.Record(round % 3)
			}
		}
	})
	o.kernel = ks
	return nil
}

func (o *RunQLenObserver) detachKernel() error {
	if o.kernel == nil {
		return nil
	}
	err := o.kernel.lifecycle.Stop(time.Second)
	o.kernel = nil
	return err
}
