//go:build linux
// +build linux

package scheduler

import (
	"context"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
)

const pickNextSymbol = "pick_next_task_fair"

type distTable = *base.MapTable[taskKey, latencyValue]

func newDistTable(name string) distTable {
	return base.NewMapTable(name, taskCodec)
}

type pickKernelState struct {
	coll  *ebpf.Collection
	links []link.Link
}

// attachKernel loads the picknext program and attaches the entry and return probes.
func (o *PickNextObserver) attachKernel(_ context.Context) error {
	coll, err := base.LoadCollection(o.config.ObjectPath, pickNextSpec, o.logger)
	if err != nil {
		return err
	}
	ks := &pickKernelState{coll: coll}

	dist := coll.Maps[distMapName]
	entry := coll.Programs["pick_start"]
	ret := coll.Programs["pick_end"]
	if dist == nil || entry == nil || ret == nil {
		coll.Close()
		return fmt.Errorf("%s lacks map %s or programs pick_start/pick_end",
			base.ObjectSource(o.config.ObjectPath, "picknext"), distMapName)
	}

	kp, err := link.Kprobe(pickNextSymbol, entry, nil)
	if err != nil {
		coll.Close()
		return fmt.Errorf("attaching kprobe %s: %w", pickNextSymbol, err)
	}
	ks.links = append(ks.links, kp)

	krp, err := link.Kretprobe(pickNextSymbol, ret, nil)
	if err != nil {
		ks.close()
		return fmt.Errorf("attaching kretprobe %s: %w", pickNextSymbol, err)
	}
	ks.links = append(ks.links, krp)

	o.kernel = ks
	o.dist.Bind(dist)
	return nil
}

func (o *PickNextObserver) detachKernel() error {
	o.dist.Bind(nil)
	if o.kernel == nil {
		return nil
	}
	err := o.kernel.close()
	o.kernel = nil
	return err
}

func (ks *pickKernelState) close() error {
	err := closeLinks(ks.links)
	ks.links = nil
	ks.coll.Close()
	return err
}
