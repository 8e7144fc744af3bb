package scheduler

import (
	"time"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// DefaultFrequency is the run-queue sampling rate per CPU (Hz).
const DefaultFrequency = 20

// Config holds scheduler collaborator configuration
type Config struct {
	// Name identifies the collaborator (default: "picknext" or "runqlen")
	Name string `json:"name" yaml:"name"`

	// ObjectPath overrides the embedded BPF object
	ObjectPath string `json:"object_path" yaml:"object_path"`

	// Frequency is the run-queue sampling rate per CPU in Hz (default: 20)
	Frequency int `json:"frequency" yaml:"frequency"`

	// PerfBufferPages per CPU for the run-queue perf buffer (default: 8)
	PerfBufferPages int `json:"perf_buffer_pages" yaml:"perf_buffer_pages"`

	// MockInterval paces the synthetic producer on platforms without eBPF (default: 50ms)
	MockInterval time.Duration `json:"mock_interval" yaml:"mock_interval"`
}

// DefaultPickNextConfig returns default pick-next configuration
func DefaultPickNextConfig() *Config {
	return &Config{
		Name:         "picknext",
		MockInterval: 50 * time.Millisecond,
	}
}

// DefaultRunQLenConfig returns default run-queue configuration
func DefaultRunQLenConfig() *Config {
	return &Config{
		Name:            "runqlen",
		Frequency:       DefaultFrequency,
		PerfBufferPages: 8,
		MockInterval:    50 * time.Millisecond,
	}
}

// applyDefaults fills unset fields from d
func (c *Config) applyDefaults(d *Config) {
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Frequency == 0 {
		c.Frequency = d.Frequency
	}
	if c.PerfBufferPages == 0 {
		c.PerfBufferPages = d.PerfBufferPages
	}
	if c.MockInterval == 0 {
		c.MockInterval = d.MockInterval
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Frequency < 0 {
		return domain.NewValidationError("frequency", c.Frequency, "cannot be negative")
	}
	if c.PerfBufferPages < 0 || c.PerfBufferPages&(c.PerfBufferPages-1) != 0 {
		return domain.NewValidationError("perf_buffer_pages", c.PerfBufferPages, "must be a power of 2")
	}
	if c.MockInterval < 0 {
		return domain.NewValidationError("mock_interval", c.MockInterval, "cannot be negative")
	}
	return nil
}
