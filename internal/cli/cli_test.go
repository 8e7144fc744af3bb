package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/internal/output"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// captureRun records the config a command would run with.
type captureRun struct {
	cfg   *config.Config
	calls int
}

func (c *captureRun) run(_ context.Context, cfg *config.Config, _ *zap.Logger, _ io.Writer) error {
	c.cfg = cfg
	c.calls++
	return nil
}

func execute(t *testing.T, args ...string) (*captureRun, string, error) {
	t.Helper()
	capture := &captureRun{}
	cmd := newRootCmd(capture.run)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return capture, out.String(), err
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(domain.NewValidationError("interval", 0, "must be > 0")))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitUnavailable, ExitCode(
		fmt.Errorf("failed to attach nic: %w", domain.ErrCollaboratorUnavailable)))
}

func TestNICCommandFlags(t *testing.T) {
	capture, _, err := execute(t, "nic", "-n", "lo", "-i", "0.5", "-c", "3")
	require.NoError(t, err)
	require.Equal(t, 1, capture.calls)

	cfg := capture.cfg
	assert.Equal(t, 500*time.Millisecond, cfg.IntervalDuration())
	assert.Equal(t, 3, cfg.Count)
	assert.Equal(t, "clear", cfg.DrainMode)
	assert.True(t, cfg.ConsoleEnabled())
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, config.KindNIC, cfg.Sources[0].Kind)
	assert.Equal(t, "lo", cfg.Sources[0].Device)
}

func TestNICCommandDefaults(t *testing.T) {
	capture, _, err := execute(t, "nic", "-n", "eth1")
	require.NoError(t, err)
	assert.Equal(t, "eth1", capture.cfg.Sources[0].Device)
	assert.Equal(t, time.Second, capture.cfg.IntervalDuration())
	assert.Zero(t, capture.cfg.Count)
}

func TestNICCommandRequiresInterface(t *testing.T) {
	capture, _, err := execute(t, "nic")
	require.Error(t, err)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "device", ve.Field)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Zero(t, capture.calls)

	t.Setenv("KTELEMETRY_NAME", "lo")
	capture, _, err = execute(t, "nic")
	require.NoError(t, err)
	assert.Equal(t, "lo", capture.cfg.Sources[0].Device)
}

func TestRunQLenDefaultFrequency(t *testing.T) {
	capture, _, err := execute(t, "runqlen", "-c", "1")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRunQLenFrequency, capture.cfg.Sources[0].Frequency)

	capture, _, err = execute(t, "runqlen", "--frequency", "99")
	require.NoError(t, err)
	assert.Equal(t, 99, capture.cfg.Sources[0].Frequency)
}

func TestPickNextCommand(t *testing.T) {
	capture, _, err := execute(t, "picknext", "--drain-mode", "atomic")
	require.NoError(t, err)
	assert.Equal(t, config.KindPickNext, capture.cfg.Sources[0].Kind)
	assert.Equal(t, "atomic", capture.cfg.DrainMode)
}

func TestBadIntervalRejectedBeforeRun(t *testing.T) {
	for _, interval := range []string{"0", "-1"} {
		t.Run(interval, func(t *testing.T) {
			capture, _, err := execute(t, "nic", "-n", "lo", "--interval="+interval)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			assert.Equal(t, ExitFailure, ExitCode(err))
			assert.Zero(t, capture.calls)
		})
	}
}

func TestSinkSelection(t *testing.T) {
	capture, _, err := execute(t, "nic", "-n", "lo",
		"--sink", "influx", "--sink", "nats",
		"--influx-org", "lab", "--influx-bucket", "kernel",
		"--nats-subject", "lab")
	require.NoError(t, err)

	cfg := capture.cfg
	require.NotNil(t, cfg.Sinks.Influx)
	assert.Equal(t, "http://localhost:8086", cfg.Sinks.Influx.URL)
	assert.Equal(t, "kernel", cfg.Sinks.Influx.Bucket)
	require.NotNil(t, cfg.Sinks.NATS)
	assert.Equal(t, "lab", cfg.Sinks.NATS.SubjectPrefix)
	assert.Nil(t, cfg.Sinks.Prometheus)
	assert.False(t, cfg.ConsoleEnabled())
	assert.True(t, cfg.Sinks.AsyncEnabled())
}

func TestSinkSelectionWithConsole(t *testing.T) {
	capture, _, err := execute(t, "nic", "-n", "lo", "--sink", "console,prometheus", "--metrics-addr", ":0", "--async=false")
	require.NoError(t, err)
	assert.True(t, capture.cfg.ConsoleEnabled())
	assert.NotNil(t, capture.cfg.Sinks.Prometheus)
	assert.False(t, capture.cfg.Sinks.AsyncEnabled())
}

func TestSinkSelectionErrors(t *testing.T) {
	_, _, err := execute(t, "nic", "-n", "lo", "--sink", "kafka")
	assert.True(t, domain.IsValidationError(err))

	_, _, err = execute(t, "nic", "-n", "lo", "--sink", "prometheus")
	assert.True(t, domain.IsValidationError(err), "prometheus needs --metrics-addr")

	_, _, err = execute(t, "nic", "-n", "lo", "--sink", "influx")
	assert.True(t, domain.IsValidationError(err), "influx needs org and bucket")
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("KTELEMETRY_DRAIN_MODE", "atomic")
	t.Setenv("KTELEMETRY_METRICS_ADDR", "127.0.0.1:9464")

	capture, _, err := execute(t, "picknext")
	require.NoError(t, err)
	assert.Equal(t, "atomic", capture.cfg.DrainMode)
	assert.Equal(t, "127.0.0.1:9464", capture.cfg.MetricsAddr)
}

func TestBadLogLevel(t *testing.T) {
	capture, _, err := execute(t, "nic", "-n", "lo", "--log-level", "loud")
	assert.True(t, domain.IsValidationError(err))
	assert.Zero(t, capture.calls)
}

func TestRunCommandLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interval: 2
sources:
  - kind: nic
    device: lo
  - kind: picknext
`), 0o600))

	capture, _, err := execute(t, "run", "--config", path, "--metrics-addr", ":9464")
	require.NoError(t, err)

	cfg := capture.cfg
	assert.Equal(t, 2*time.Second, cfg.IntervalDuration())
	assert.Equal(t, ":9464", cfg.MetricsAddr)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "lo", cfg.Sources[0].Device)
}

func TestRunCommandErrors(t *testing.T) {
	_, _, err := execute(t, "run")
	assert.True(t, domain.IsValidationError(err))

	_, _, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestVersionCommand(t *testing.T) {
	_, out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ktelemetry dev")
}

// memorySource is a collaborator backed by an in-memory table.
type memorySource struct {
	name      string
	attachErr error
	detached  bool
}

func (m *memorySource) Name() string                 { return m.name }
func (m *memorySource) Validate() error              { return nil }
func (m *memorySource) Attach(context.Context) error { return m.attachErr }
func (m *memorySource) Detach() error                { m.detached = true; return nil }

func registerMemorySource(t *testing.T, kind string, attachErr error) {
	t.Helper()
	orchestrator.RegisterSourceFactory(kind, func(cfg *config.SourceConfig, _ *zap.Logger) (*orchestrator.Source, error) {
		table := base.NewMemoryTable("q")
		table.Add(domain.QueueKey(1), domain.Counters{Sum: 3000, Count: 2})
		return &orchestrator.Source{
			Collaborator: &memorySource{name: cfg.Name, attachErr: attachErr},
			Tables: []orchestrator.SourceTable{
				{Table: table, Spec: domain.QueueTableSpec("q", "Q", "lo", "q", 2)},
			},
		}, nil
	})
}

func TestSourcesCommand(t *testing.T) {
	registerMemorySource(t, "memory-list", nil)
	_, out, err := execute(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, strings.Split(strings.TrimSpace(out), "\n"), "memory-list")
}

func TestCollectRunsPipelines(t *testing.T) {
	registerMemorySource(t, "memory-ok", nil)
	cfg := &config.Config{
		BaseConfig: config.BaseConfig{Interval: 0.005, Count: 2},
		Sources:    []config.SourceConfig{{Name: "mem", Kind: "memory-ok"}},
	}
	cfg.SetDefaults()

	var out bytes.Buffer
	require.NoError(t, collect(context.Background(), cfg, zaptest.NewLogger(t), &out))

	text := out.String()
	assert.Equal(t, 2, strings.Count(text, strings.Repeat("-", output.SeparatorWidth)))
	assert.Contains(t, text, "Q\n QueueID    avg_size   BPS        PPS\n")
}

func TestCollectAttachFailureExitsUnavailable(t *testing.T) {
	registerMemorySource(t, "memory-broken", errors.New("operation not permitted"))
	cfg := &config.Config{
		BaseConfig: config.BaseConfig{Interval: 0.005, Count: 1},
		Sources:    []config.SourceConfig{{Name: "mem", Kind: "memory-broken"}},
	}
	cfg.SetDefaults()

	var out bytes.Buffer
	err := collect(context.Background(), cfg, zaptest.NewLogger(t), &out)
	require.Error(t, err)
	assert.Equal(t, ExitUnavailable, ExitCode(err))
	assert.Empty(t, out.String())
}

func TestCollectUnknownKind(t *testing.T) {
	cfg := &config.Config{
		BaseConfig: config.BaseConfig{Interval: 1},
		Sources:    []config.SourceConfig{{Name: "x", Kind: "not-registered"}},
	}
	cfg.SetDefaults()

	err := collect(context.Background(), cfg, zaptest.NewLogger(t), io.Discard)
	assert.True(t, domain.IsValidationError(err))
}
