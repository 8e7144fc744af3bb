package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/internal/sinks"
	"go.uber.org/zap"
)

// buildSinks creates the configured point sinks. Network sinks are wrapped
// in an async queue unless disabled. The Prometheus sink shares registry
// with the self-metrics so one /metrics endpoint serves both.
func buildSinks(cfg *config.Config, registry *prometheus.Registry, instruments *base.Instruments, logger *zap.Logger) ([]sinks.Sink, error) {
	var out []sinks.Sink
	queued := func(s sinks.Sink) sinks.Sink {
		if !cfg.Sinks.AsyncEnabled() {
			return s
		}
		return sinks.NewAsync(s, sinks.AsyncConfig{
			QueueSize:       cfg.Sinks.QueueSize,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, instruments, logger)
	}

	if c := cfg.Sinks.Influx; c != nil {
		s, err := sinks.NewInflux(*c, logger)
		if err != nil {
			closeSinks(out, logger)
			return nil, err
		}
		out = append(out, queued(s))
	}
	if c := cfg.Sinks.NATS; c != nil {
		s, err := sinks.NewNATS(*c, logger)
		if err != nil {
			closeSinks(out, logger)
			return nil, err
		}
		out = append(out, queued(s))
	}
	if c := cfg.Sinks.Prometheus; c != nil {
		out = append(out, sinks.NewPrometheus(c.Namespace, registry))
	}

	for _, s := range out {
		logger.Info("Sink enabled", zap.String("sink", s.Name()))
	}
	return out, nil
}

func closeSinks(out []sinks.Sink, logger *zap.Logger) {
	for _, s := range out {
		if err := sinks.Close(s); err != nil {
			logger.Warn("Failed to close sink", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}
