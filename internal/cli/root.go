// Package cli is the ktelemetry command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUnavailable = 2
)

// runFunc executes one validated collector run.
type runFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error

// app carries the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	run    runFunc
	logger *zap.Logger
}

// Execute runs the root command until it returns or SIGINT/SIGTERM cancels
// the collection loop.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(collect).ExecuteContext(ctx)
}

// ExitCode maps an Execute error to the process exit status: 2 when the
// kernel instrumentation could not be set up, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

func newRootCmd(run runFunc) *cobra.Command {
	a := &app{v: viper.New(), run: run}

	root := &cobra.Command{
		Use:   "ktelemetry",
		Short: "Kernel-assisted telemetry collector",
		Long: `ktelemetry attaches eBPF programs that count per-queue NIC traffic,
pick_next_task latency and run-queue length, and every interval turns the
counters into rates printed to the console or pushed to InfluxDB, NATS
or a Prometheus endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			logger, err := newLogger(a.v.GetString("log-level"))
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringSlice("sink", nil, "Output sinks: console, influx, prometheus, nats (repeatable)")
	flags.String("drain-mode", "clear", "How tables are emptied after a read: clear or atomic")
	flags.String("metrics-addr", "", "Serve /metrics and /health on this address")
	flags.String("otlp-endpoint", "", "Push self-metrics to this OTLP gRPC endpoint")
	flags.Duration("shutdown-timeout", 5*time.Second, "Deadline for flushing sinks on exit")
	flags.String("influx-url", "http://localhost:8086", "InfluxDB URL")
	flags.String("influx-token", "", "InfluxDB API token")
	flags.String("influx-org", "", "InfluxDB organization")
	flags.String("influx-bucket", "", "InfluxDB bucket")
	flags.String("nats-url", "", "NATS server URL (default nats://127.0.0.1:4222)")
	flags.String("nats-subject", "", "NATS subject prefix (default ktelemetry)")
	flags.Bool("async", true, "Queue points for network sinks off the collection loop")
	flags.Int("queue-size", 1024, "Points buffered per network sink")

	a.v.SetEnvPrefix("KTELEMETRY")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newNICCmd(a),
		newPickNextCmd(a),
		newRunQLenCmd(a),
		newRunCmd(a),
		newSourcesCmd(),
		newVersionCmd(),
	)
	return root
}

// newLogger builds a development logger at debug level and a production
// JSON logger otherwise.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, domain.NewValidationError("log-level", level, "must be debug, info, warn or error")
	}

	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger.Named("ktelemetry"), nil
}
