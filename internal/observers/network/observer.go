package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

// Observer traces per-queue transmit and receive traffic of one network
// interface. It fills two tables, tx_q and rx_q, keyed by queue id.
type Observer struct {
	name   string
	config *Config
	logger *zap.Logger

	mu       sync.Mutex
	queues   QueueCounts
	attached bool

	// Platform-specific state
	tx, rx queueTable
	kernel *kernelState
}

// NewObserver creates a new NIC queue observer
func NewObserver(config *Config, logger *zap.Logger) (*Observer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Observer{
		name:   config.Name,
		config: config,
		logger: logger.Named(config.Name).With(zap.String("device", config.Device)),
		tx:     newQueueTable(txMapName),
		rx:     newQueueTable(rxMapName),
	}, nil
}

// Name implements domain.Collaborator.
func (o *Observer) Name() string { return o.name }

// Device returns the traced interface.
func (o *Observer) Device() string { return o.config.Device }

// Queues returns the queue counts found by the last Validate.
func (o *Observer) Queues() QueueCounts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queues
}

// Validate checks the interface exists and counts its queues. It touches
// sysfs only.
func (o *Observer) Validate() error {
	if err := o.config.Validate(); err != nil {
		return err
	}
	counts, err := DiscoverQueues(o.config.SysfsRoot, o.config.Device)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.queues = counts
	o.mu.Unlock()

	o.logger.Debug("Discovered queues", zap.Int("tx", counts.TX), zap.Int("rx", counts.RX))
	return nil
}

// Tables returns the TX then RX table with their rendering. Validate must
// have succeeded first so the key spaces are sized.
func (o *Observer) Tables() []orchestrator.SourceTable {
	q := o.Queues()
	return []orchestrator.SourceTable{
		{Table: o.tx, Spec: domain.QueueTableSpec(txMapName, "TX", o.config.Device, "tx", q.TX)},
		{Table: o.rx, Spec: domain.QueueTableSpec(rxMapName, "RX", o.config.Device, "rx", q.RX)},
	}
}

// Attach implements domain.Collaborator.
func (o *Observer) Attach(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attached {
		return nil
	}
	if err := o.attachKernel(ctx); err != nil {
		return fmt.Errorf("%w: nic %s: %w", domain.ErrCollaboratorUnavailable, o.config.Device, err)
	}
	o.attached = true
	o.logger.Info("NIC queue tracing attached")
	return nil
}

// Detach implements domain.Collaborator.
func (o *Observer) Detach() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.attached {
		return nil
	}
	o.attached = false
	err := o.detachKernel()
	o.logger.Info("NIC queue tracing detached")
	return err
}
