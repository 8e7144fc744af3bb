package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

// PickNextObserver measures how long the fair scheduler takes to pick the
// next task, summed per (cpu, pid, tgid) in the dist table.
type PickNextObserver struct {
	name   string
	config *Config
	logger *zap.Logger

	mu       sync.Mutex
	attached bool

	// Platform-specific state
	dist   distTable
	kernel *pickKernelState
}

// NewPickNextObserver creates a new pick-next latency observer
func NewPickNextObserver(config *Config, logger *zap.Logger) (*PickNextObserver, error) {
	if config == nil {
		config = DefaultPickNextConfig()
	}
	config.applyDefaults(DefaultPickNextConfig())
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PickNextObserver{
		name:   config.Name,
		config: config,
		logger: logger.Named(config.Name),
		dist:   newDistTable(distMapName),
	}, nil
}

// Name implements domain.Collaborator.
func (o *PickNextObserver) Name() string { return o.name }

// Validate implements domain.Collaborator.
func (o *PickNextObserver) Validate() error {
	return o.config.Validate()
}

// Tables returns the dist table and its rendering.
func (o *PickNextObserver) Tables() []orchestrator.SourceTable {
	return []orchestrator.SourceTable{
		{Table: o.dist, Spec: domain.PickLatencyTableSpec(distMapName)},
	}
}

// Attach implements domain.Collaborator.
func (o *PickNextObserver) Attach(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attached {
		return nil
	}
	if err := o.attachKernel(ctx); err != nil {
		return fmt.Errorf("%w: picknext: %w", domain.ErrCollaboratorUnavailable, err)
	}
	o.attached = true
	o.logger.Info("Pick-next latency tracing attached")
	return nil
}

// Detach implements domain.Collaborator.
func (o *PickNextObserver) Detach() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.attached {
		return nil
	}
	o.attached = false
	return o.detachKernel()
}
