package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yairfalse/ktelemetry/internal/sinks"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Source kinds known to the collector.
const (
	KindNIC      = "nic"
	KindPickNext = "picknext"
	KindRunQLen  = "runqlen"
)

// MaxDeviceNameLength is IFNAMSIZ minus the terminating NUL.
const MaxDeviceNameLength = 15

// DefaultRunQLenFrequency is the run-queue sampling rate per CPU (Hz).
const DefaultRunQLenFrequency = 20

// BaseConfig provides the loop settings shared by every source of one run
type BaseConfig struct {
	// Interval between ticks in seconds. Must be > 0; there is no default in
	// the file so a missing interval is rejected.
	Interval float64 `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Count is the number of ticks before exiting (default: 0, until cancelled)
	Count int `json:"count" yaml:"count" mapstructure:"count"`

	// DrainMode is "clear" or "atomic" (default: clear)
	DrainMode string `json:"drain_mode" yaml:"drain_mode" mapstructure:"drain_mode"`

	// Console prints the per-tick tables (default: true when no sink is set)
	Console *bool `json:"console" yaml:"console" mapstructure:"console"`

	// ShutdownTimeout bounds flushing and closing sinks (default: 5s)
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// SourceConfig configures one collaborator and the tables it feeds
type SourceConfig struct {
	// Name is the unique identifier for the source instance
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Kind selects the registered factory (nic, picknext, runqlen)
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Device is the network interface for nic sources
	Device string `json:"device" yaml:"device" mapstructure:"device"`

	// Frequency is the runqlen sampling rate per CPU (default: 20)
	Frequency int `json:"frequency" yaml:"frequency" mapstructure:"frequency"`

	// Object overrides the BPF object embedded in the binary
	Object string `json:"object" yaml:"object" mapstructure:"object"`

	// Tags are added to every point of this source
	Tags map[string]string `json:"tags" yaml:"tags" mapstructure:"tags"`
}

// SinksConfig selects where points go. A nil section disables that sink.
type SinksConfig struct {
	Influx     *sinks.InfluxConfig `json:"influx" yaml:"influx" mapstructure:"influx"`
	NATS       *sinks.NATSConfig   `json:"nats" yaml:"nats" mapstructure:"nats"`
	Prometheus *PrometheusConfig   `json:"prometheus" yaml:"prometheus" mapstructure:"prometheus"`

	// Async wraps every network sink in a bounded queue (default: true)
	Async *bool `json:"async" yaml:"async" mapstructure:"async"`
	// QueueSize for async sinks (default: 1024)
	QueueSize int `json:"queue_size" yaml:"queue_size" mapstructure:"queue_size"`
}

// PrometheusConfig exposes the latest window values as gauges
type PrometheusConfig struct {
	// Namespace prefixes every gauge (default: "ktelemetry")
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// Config is one collector run
type Config struct {
	BaseConfig `json:",inline" yaml:",inline" mapstructure:",squash"`

	// MetricsAddr serves /metrics for sinks and self-metrics (empty: disabled)
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" mapstructure:"metrics_addr"`

	// OTLPEndpoint pushes self-metrics over OTLP gRPC (empty: disabled)
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`

	Sinks   SinksConfig    `json:"sinks" yaml:"sinks" mapstructure:"sinks"`
	Sources []SourceConfig `json:"sources" yaml:"sources" mapstructure:"sources"`
}

// SetDefaults applies default values to unset fields
func (c *BaseConfig) SetDefaults() {
	if c.DrainMode == "" {
		c.DrainMode = "clear"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// IntervalDuration converts Interval to a duration
func (c *BaseConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

// Validate performs base configuration validation
func (c *BaseConfig) Validate() error {
	if c.Interval <= 0 {
		return domain.NewValidationError("interval", c.Interval, "must be > 0 seconds")
	}
	if c.IntervalDuration() <= 0 {
		return domain.NewValidationError("interval", c.Interval, "below clock resolution")
	}
	if c.Count < 0 {
		return domain.NewValidationError("count", c.Count, "must be >= 0")
	}
	switch c.DrainMode {
	case "", "clear", "atomic":
	default:
		return domain.NewValidationError("drain_mode", c.DrainMode, "must be clear or atomic")
	}
	if c.ShutdownTimeout < 0 {
		return domain.NewValidationError("shutdown_timeout", c.ShutdownTimeout, "cannot be negative")
	}
	return nil
}

// ConsoleEnabled reports whether tables are printed. Without an explicit
// setting the console is on only when no point sink is configured.
func (c *Config) ConsoleEnabled() bool {
	if c.Console != nil {
		return *c.Console
	}
	return !c.Sinks.Any()
}

// Any reports whether a point sink is configured.
func (s *SinksConfig) Any() bool {
	return s.Influx != nil || s.NATS != nil || s.Prometheus != nil
}

// AsyncEnabled reports whether network sinks are queued.
func (s *SinksConfig) AsyncEnabled() bool {
	return s.Async == nil || *s.Async
}

// SetDefaults applies default values to unset fields
func (c *SourceConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = c.Kind
	}
	if c.Kind == KindRunQLen && c.Frequency == 0 {
		c.Frequency = DefaultRunQLenFrequency
	}
	if c.Tags == nil {
		c.Tags = make(map[string]string)
	}
}

// Validate performs source-specific validation. It checks the shape of the
// configuration only; whether the device exists is the collaborator's call.
func (c *SourceConfig) Validate() error {
	switch c.Kind {
	case KindNIC:
		if c.Device == "" {
			return domain.NewValidationError("device", nil, "is required for nic sources")
		}
		if len(c.Device) > MaxDeviceNameLength {
			return domain.NewValidationError("device", c.Device,
				fmt.Sprintf("longer than %d characters", MaxDeviceNameLength))
		}
	case KindPickNext:
	case KindRunQLen:
		if c.Frequency <= 0 {
			return domain.NewValidationError("frequency", c.Frequency, "must be > 0")
		}
	case "":
		return domain.NewValidationError("kind", nil, "is required")
	default:
		return domain.NewValidationError("kind", c.Kind, "unknown source kind")
	}
	return nil
}

// SetDefaults applies defaults to the run and every source
func (c *Config) SetDefaults() {
	c.BaseConfig.SetDefaults()
	if c.Sinks.QueueSize == 0 {
		c.Sinks.QueueSize = 1024
	}
	if c.Sinks.NATS != nil {
		c.Sinks.NATS.SetDefaults()
	}
	if c.Sinks.Prometheus != nil && c.Sinks.Prometheus.Namespace == "" {
		c.Sinks.Prometheus.Namespace = "ktelemetry"
	}
	for i := range c.Sources {
		c.Sources[i].SetDefaults()
	}
}

// Validate validates the run. Errors are *domain.ValidationError.
func (c *Config) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if len(c.Sources) == 0 {
		return domain.NewValidationError("sources", nil, "at least one source is required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("source %q: %w", src.Name, err)
		}
		if seen[src.Name] {
			return domain.NewValidationError("sources", src.Name, "duplicate source name")
		}
		seen[src.Name] = true
	}
	if c.Sinks.Influx != nil {
		if err := c.Sinks.Influx.Validate(); err != nil {
			return err
		}
	}
	if c.Sinks.Prometheus != nil && c.MetricsAddr == "" {
		return domain.NewValidationError("metrics_addr", nil, "is required by the prometheus sink")
	}
	return nil
}

// LoadYAMLConfig loads a run from a YAML file with environment variable
// expansion, applies defaults and validates it.
func LoadYAMLConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return ParseYAMLConfig(data)
}

// ParseYAMLConfig parses, defaults and validates a YAML run.
func ParseYAMLConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
