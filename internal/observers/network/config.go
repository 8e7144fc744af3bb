package network

import (
	"fmt"
	"time"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// MaxDeviceNameLength is IFNAMSIZ minus the terminating NUL.
const MaxDeviceNameLength = 15

// Config holds NIC queue collaborator configuration
type Config struct {
	// Name identifies the collaborator (default: "nic")
	Name string `json:"name" yaml:"name"`

	// Device is the network interface to trace, e.g. "eth0"
	Device string `json:"device" yaml:"device"`

	// ObjectPath overrides the embedded nic_throughput BPF object
	ObjectPath string `json:"object_path" yaml:"object_path"`

	// SysfsRoot is where network interfaces are listed (default: /sys/class/net)
	SysfsRoot string `json:"sysfs_root" yaml:"sysfs_root"`

	// MockInterval paces the synthetic producer on platforms without eBPF (default: 100ms)
	MockInterval time.Duration `json:"mock_interval" yaml:"mock_interval"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Name:         "nic",
		SysfsRoot:    "/sys/class/net",
		MockInterval: 100 * time.Millisecond,
	}
}

// SetDefaults applies default values to unset fields
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.SysfsRoot == "" {
		c.SysfsRoot = d.SysfsRoot
	}
	if c.MockInterval == 0 {
		c.MockInterval = d.MockInterval
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Device == "" {
		return domain.NewValidationError("device", nil, "a network interface is required")
	}
	if len(c.Device) > MaxDeviceNameLength {
		return domain.NewValidationError("device", c.Device,
			fmt.Sprintf("name longer than %d characters", MaxDeviceNameLength))
	}
	if c.MockInterval < 0 {
		return domain.NewValidationError("mock_interval", c.MockInterval, "cannot be negative")
	}
	return nil
}
