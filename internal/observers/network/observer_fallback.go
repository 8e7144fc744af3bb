//go:build !linux
// +build !linux

package network

import (
	"context"
	"time"

	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

type queueTable = *base.MemoryTable

func newQueueTable(name string) queueTable {
	return base.NewMemoryTable(name)
}

// kernelState runs the synthetic producer.
type kernelState struct {
	lifecycle *base.LifecycleManager
}

// attachKernel starts a mock producer on platforms without eBPF
func (o *Observer) attachKernel(_ context.Context) error {
	o.logger.Warn("NIC tracing requires Linux with eBPF support, running in mock mode")

	q := o.queues
	ks := &kernelState{lifecycle: base.NewLifecycleManager(context.Background(), o.logger)}
	ks.lifecycle.Start("nic-mock", func(ctx context.Context) {
		ticker := time.NewTicker(o.config.MockInterval)
		defer ticker.Stop()

		var round uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				round++
				o.generateMockTraffic(q, round)
			}
		}
	})
	o.kernel = ks
	return nil
}

// generateMockTraffic adds one burst per queue, busier on lower queues.
func (o *Observer) generateMockTraffic(q QueueCounts, round uint64) {
	for i := 0; i < q.TX; i++ {
		pkts := uint64(q.TX-i) + round%3
		o.tx.Add(domain.QueueKey(uint16(i)), domain.Counters{Sum: pkts * 1500, Count: pkts})
	}
	for i := 0; i < q.RX; i++ {
		pkts := uint64(q.RX-i) + round%5
		o.rx.Add(domain.QueueKey(uint16(i)), domain.Counters{Sum: pkts * 800, Count: pkts})
	}
}

// detachKernel stops the mock producer
func (o *Observer) detachKernel() error {
	if o.kernel == nil {
		return nil
	}
	err := o.kernel.lifecycle.Stop(time.Second)
	o.kernel = nil
	if err != nil {
		o.logger.Warn("Mock producer did not stop in time", zap.Error(err))
	}
	return err
}
