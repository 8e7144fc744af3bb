package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

// RunQLenObserver samples the run-queue length of every CPU at a fixed
// frequency. Samples are pushed through a perf buffer and accumulated into
// an event table keyed by length.
type RunQLenObserver struct {
	name   string
	config *Config
	logger *zap.Logger

	mu       sync.Mutex
	attached bool

	table  *base.EventTable
	kernel *runqKernelState
}

// NewRunQLenObserver creates a new run-queue length observer
func NewRunQLenObserver(config *Config, logger *zap.Logger) (*RunQLenObserver, error) {
	if config == nil {
		config = DefaultRunQLenConfig()
	}
	config.applyDefaults(DefaultRunQLenConfig())
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RunQLenObserver{
		name:   config.Name,
		config: config,
		logger: logger.Named(config.Name),
		table:  base.NewEventTable("runqlen"),
	}, nil
}

// Name implements domain.Collaborator.
func (o *RunQLenObserver) Name() string { return o.name }

// Validate implements domain.Collaborator.
func (o *RunQLenObserver) Validate() error {
	if err := o.config.Validate(); err != nil {
		return err
	}
	if o.config.Frequency <= 0 {
		return domain.NewValidationError("frequency", o.config.Frequency, "must be > 0")
	}
	return nil
}

// Tables returns the run-queue table and its rendering.
func (o *RunQLenObserver) Tables() []orchestrator.SourceTable {
	return []orchestrator.SourceTable{
		{Table: o.table, Spec: domain.RunQueueTableSpec(o.table.Name())},
	}
}

// Record pushes one sample. The perf reader and the mock producer use it.
func (o *RunQLenObserver) Record(length uint32) {
	o.table.Record(length)
}

// Attach implements domain.Collaborator.
func (o *RunQLenObserver) Attach(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attached {
		return nil
	}
	if err := o.attachKernel(ctx); err != nil {
		return fmt.Errorf("%w: runqlen: %w", domain.ErrCollaboratorUnavailable, err)
	}
	o.attached = true
	o.logger.Info("Run-queue sampling attached", zap.Int("frequency_hz", o.config.Frequency))
	return nil
}

// Detach implements domain.Collaborator.
func (o *RunQLenObserver) Detach() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.attached {
		return nil
	}
	o.attached = false
	err := o.detachKernel()
	if lost := o.table.Lost(); lost > 0 {
		o.logger.Warn("Run-queue samples lost in the perf buffer", zap.Uint64("lost", lost))
	}
	return err
}
