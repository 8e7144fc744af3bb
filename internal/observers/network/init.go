package network

import (
	"fmt"

	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/internal/observers/registration"
	"go.uber.org/zap"
)

func init() {
	registration.RegisterSource(config.KindNIC, Factory)
}

// Factory builds a NIC source. The interface is validated here so the
// tables can be sized before anything is attached.
func Factory(cfg *config.SourceConfig, logger *zap.Logger) (*orchestrator.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required for nic source")
	}

	observer, err := NewObserver(&Config{
		Name:       cfg.Name,
		Device:     cfg.Device,
		ObjectPath: cfg.Object,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := observer.Validate(); err != nil {
		return nil, err
	}

	return &orchestrator.Source{
		Collaborator: observer,
		Tables:       observer.Tables(),
	}, nil
}
