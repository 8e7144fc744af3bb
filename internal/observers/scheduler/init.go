package scheduler

import (
	"fmt"

	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/internal/observers/registration"
	"go.uber.org/zap"
)

func init() {
	registration.RegisterSource(config.KindPickNext, PickNextFactory)
	registration.RegisterSource(config.KindRunQLen, RunQLenFactory)
}

// PickNextFactory builds a pick-next latency source.
func PickNextFactory(cfg *config.SourceConfig, logger *zap.Logger) (*orchestrator.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required for picknext source")
	}
	observer, err := NewPickNextObserver(&Config{
		Name:       cfg.Name,
		ObjectPath: cfg.Object,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create picknext observer: %w", err)
	}
	return &orchestrator.Source{Collaborator: observer, Tables: observer.Tables()}, nil
}

// RunQLenFactory builds a run-queue length source.
func RunQLenFactory(cfg *config.SourceConfig, logger *zap.Logger) (*orchestrator.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required for runqlen source")
	}
	observer, err := NewRunQLenObserver(&Config{
		Name:       cfg.Name,
		ObjectPath: cfg.Object,
		Frequency:  cfg.Frequency,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create runqlen observer: %w", err)
	}
	return &orchestrator.Source{Collaborator: observer, Tables: observer.Tables()}, nil
}
