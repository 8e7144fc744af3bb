//go:build linux && !ebpf
// +build linux,!ebpf

package network

import "github.com/yairfalse/ktelemetry/internal/observers/base"

// Without the ebpf tag only an explicit object path can be loaded.
var nicThroughputSpec base.SpecLoader
