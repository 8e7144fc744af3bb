//go:build linux && ebpf
// +build linux,ebpf

package network

import (
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/observers/network/bpf"
)

var nicThroughputSpec base.SpecLoader = bpf.LoadNicThroughput
