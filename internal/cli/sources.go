package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/internal/sinks"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// Sink names accepted by --sink.
const (
	sinkConsole    = "console"
	sinkInflux     = "influx"
	sinkPrometheus = "prometheus"
	sinkNATS       = "nats"
)

func loopFlags(fs *pflag.FlagSet) {
	fs.Float64P("interval", "i", 1, "Seconds between reports")
	fs.IntP("count", "c", 0, "Number of reports before exiting (0: until interrupted)")
}

func newNICCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nic",
		Short: "Per-queue TX/RX packet and byte rates of one interface",
		Example: `  ktelemetry nic -n eth0
  ktelemetry nic -n eth0 -i 0.5 -c 10 --sink influx --influx-org lab --influx-bucket nic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSource(cmd, config.SourceConfig{
				Kind:   config.KindNIC,
				Name:   config.KindNIC,
				Device: a.v.GetString("name"),
			})
		},
	}
	cmd.Flags().StringP("name", "n", "", "Network interface to observe (required)")
	loopFlags(cmd.Flags())
	return cmd
}

func newPickNextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "picknext",
		Short: "Average pick_next_task_fair latency per task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSource(cmd, config.SourceConfig{
				Kind: config.KindPickNext,
				Name: config.KindPickNext,
			})
		},
	}
	loopFlags(cmd.Flags())
	return cmd
}

func newRunQLenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runqlen",
		Short: "Sampled run-queue length with percentiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSource(cmd, config.SourceConfig{
				Kind:      config.KindRunQLen,
				Name:      config.KindRunQLen,
				Frequency: a.v.GetInt("frequency"),
			})
		},
	}
	cmd.Flags().Int("frequency", config.DefaultRunQLenFrequency, "Samples per second per CPU")
	loopFlags(cmd.Flags())
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sources and sinks described in a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.GetString("config")
			if path == "" {
				return domain.NewValidationError("config", nil, "is required")
			}
			cfg, err := config.LoadYAMLConfig(path)
			if err != nil {
				return err
			}
			a.applyOverrides(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.run(cmd.Context(), cfg, a.logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("config", "", "Path to the pipelines file")
	return cmd
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the source kinds this build can attach",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, kind := range orchestrator.SourceKinds() {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
			}
		},
	}
}

// runSource runs a single source configured from flags.
func (a *app) runSource(cmd *cobra.Command, src config.SourceConfig) error {
	cfg, err := a.configFromFlags(src)
	if err != nil {
		return err
	}
	return a.run(cmd.Context(), cfg, a.logger, cmd.OutOrStdout())
}

func (a *app) configFromFlags(src config.SourceConfig) (*config.Config, error) {
	cfg := &config.Config{
		BaseConfig: config.BaseConfig{
			Interval:        a.v.GetFloat64("interval"),
			Count:           a.v.GetInt("count"),
			DrainMode:       a.v.GetString("drain-mode"),
			ShutdownTimeout: a.v.GetDuration("shutdown-timeout"),
		},
		MetricsAddr:  a.v.GetString("metrics-addr"),
		OTLPEndpoint: a.v.GetString("otlp-endpoint"),
		Sources:      []config.SourceConfig{src},
	}
	if err := a.selectSinks(cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectSinks fills cfg.Sinks from --sink. Naming sinks without console
// turns the console off.
func (a *app) selectSinks(cfg *config.Config) error {
	selected := a.v.GetStringSlice("sink")
	if len(selected) == 0 {
		return nil
	}

	for _, name := range selected {
		switch name {
		case sinkConsole:
		case sinkInflux:
			cfg.Sinks.Influx = &sinks.InfluxConfig{
				URL:    a.v.GetString("influx-url"),
				Token:  a.v.GetString("influx-token"),
				Org:    a.v.GetString("influx-org"),
				Bucket: a.v.GetString("influx-bucket"),
			}
		case sinkPrometheus:
			cfg.Sinks.Prometheus = &config.PrometheusConfig{}
		case sinkNATS:
			cfg.Sinks.NATS = &sinks.NATSConfig{
				URL:           a.v.GetString("nats-url"),
				SubjectPrefix: a.v.GetString("nats-subject"),
			}
		default:
			return domain.NewValidationError("sink", name, "must be console, influx, prometheus or nats")
		}
	}

	console := slices.Contains(selected, sinkConsole)
	async := a.v.GetBool("async")
	cfg.Console = &console
	cfg.Sinks.Async = &async
	cfg.Sinks.QueueSize = a.v.GetInt("queue-size")
	return nil
}

// applyOverrides lets flags given on the command line win over the file.
func (a *app) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.v.GetString("metrics-addr")
	}
	if flags.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = a.v.GetString("otlp-endpoint")
	}
	if flags.Changed("drain-mode") {
		cfg.DrainMode = a.v.GetString("drain-mode")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = a.v.GetDuration("shutdown-timeout")
	}
}
