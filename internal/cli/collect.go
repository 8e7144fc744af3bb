package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yairfalse/ktelemetry/internal/aggregator"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/internal/output"
	"github.com/yairfalse/ktelemetry/internal/sinks"
	"github.com/yairfalse/ktelemetry/internal/telemetry"
	"github.com/yairfalse/ktelemetry/pkg/shutdown"
	"go.uber.org/zap"
)

const serviceName = "ktelemetry"

// collect wires one run: self-metrics, sinks, one pipeline per source
// table, and the optional metrics server, then blocks in the controller.
func collect(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error {
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	cleanup := shutdown.NewHandler(cfg.ShutdownTimeout, logger)
	defer func() {
		if err := cleanup.Run(); err != nil {
			logger.Warn("Cleanup incomplete", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	tcfg := telemetry.DefaultConfig(serviceName)
	tcfg.ServiceVersion = version
	tcfg.InstanceID = runID
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.Registry = registry
	tcfg.Logger = logger
	provider, err := telemetry.NewProvider(ctx, tcfg)
	if err != nil {
		return err
	}
	cleanup.Register("telemetry", provider.Shutdown)
	instruments := base.NewInstruments(serviceName, logger)

	drain, err := aggregator.ParseDrainMode(cfg.DrainMode)
	if err != nil {
		return err
	}

	ctrlCfg := orchestrator.DefaultConfig()
	ctrlCfg.Interval = cfg.IntervalDuration()
	ctrlCfg.Iterations = cfg.Count
	ctrlCfg.ShutdownTimeout = cfg.ShutdownTimeout
	ctrlCfg.Instruments = instruments
	ctrlCfg.OnStateChange = systemdNotifier(logger)
	consoleOn := cfg.ConsoleEnabled()
	if consoleOn {
		ctrlCfg.Console = output.NewConsole(stdout, output.ShouldColorize(stdout))
	}
	ctrl := orchestrator.New(ctrlCfg, logger)

	out, err := buildSinks(cfg, registry, instruments, logger)
	if err != nil {
		return err
	}
	// The controller owns the sinks once Run starts.
	if err := addSources(ctrl, cfg, drain, consoleOn, out, logger); err != nil {
		closeSinks(out, logger)
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := telemetry.NewServer(cfg.MetricsAddr, registry, ctrl.Health, logger)
		if err := srv.Start(); err != nil {
			closeSinks(out, logger)
			return err
		}
		cleanup.Register("metrics server", srv.Shutdown)
	}

	return ctrl.Run(ctx)
}

// addSources builds every configured source and adds one pipeline per table.
func addSources(ctrl *orchestrator.Controller, cfg *config.Config, drain aggregator.DrainMode,
	console bool, out []sinks.Sink, logger *zap.Logger) error {
	for i := range cfg.Sources {
		sc := &cfg.Sources[i]
		src, err := orchestrator.BuildSource(sc, logger)
		if err != nil {
			return err
		}
		ctrl.AddCollaborator(src.Collaborator)

		for _, t := range src.Tables {
			agg, err := aggregator.New(t.Table, t.Spec, aggregator.Config{DrainMode: drain}, logger)
			if err != nil {
				return fmt.Errorf("source %s: %w", sc.Name, err)
			}
			err = ctrl.AddPipeline(orchestrator.Pipeline{
				Name:       sc.Name + "." + t.Table.Name(),
				Aggregator: agg,
				Router:     output.NewRouter(t.Spec, console, out...),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
