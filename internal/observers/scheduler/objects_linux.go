//go:build linux && !ebpf
// +build linux,!ebpf

package scheduler

import "github.com/yairfalse/ktelemetry/internal/observers/base"

// Without the ebpf tag only an explicit object path can be loaded.
var (
	pickNextSpec base.SpecLoader
	runQLenSpec  base.SpecLoader
)
