//go:build linux && ebpf
// +build linux,ebpf

package scheduler

import (
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/observers/scheduler/bpf"
)

var (
	pickNextSpec base.SpecLoader = bpf.LoadPickNext
	runQLenSpec  base.SpecLoader = bpf.LoadRunQLen
)
