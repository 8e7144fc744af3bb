//go:build linux
// +build linux

package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
)

type queueTable = *base.MapTable[uint16, queueData]

func newQueueTable(name string) queueTable {
	return base.NewMapTable(name, queueCodec)
}

// kernelState holds the loaded collection and its tracepoint links.
type kernelState struct {
	coll  *ebpf.Collection
	links []link.Link
}

// attachKernel loads the nic_throughput program, points it at the device
// and attaches the transmit and receive tracepoints.
func (o *Observer) attachKernel(_ context.Context) error {
	coll, err := base.LoadCollection(o.config.ObjectPath, nicThroughputSpec, o.logger)
	if err != nil {
		return err
	}

	ks := &kernelState{coll: coll}
	if err := o.setupKernel(ks); err != nil {
		ks.close()
		return err
	}

	o.kernel = ks
	o.tx.Bind(coll.Maps[txMapName])
	o.rx.Bind(coll.Maps[rxMapName])
	return nil
}

func (o *Observer) setupKernel(ks *kernelState) error {
	source := base.ObjectSource(o.config.ObjectPath, "nic_throughput")
	for _, name := range []string{txMapName, rxMapName, nameMapName} {
		if ks.coll.Maps[name] == nil {
			return fmt.Errorf("map %s missing from %s", name, source)
		}
	}

	name := devName(o.config.Device)
	if err := ks.coll.Maps[nameMapName].Put(uint32(0), name); err != nil {
		return fmt.Errorf("setting device name: %w", err)
	}

	probes := []struct {
		group, event, program string
	}{
		{"net", "net_dev_start_xmit", "trace_net_dev_start_xmit"},
		{"net", "netif_receive_skb", "trace_netif_receive_skb"},
	}
	for _, p := range probes {
		prog := ks.coll.Programs[p.program]
		if prog == nil {
			return fmt.Errorf("program %s missing from %s", p.program, source)
		}
		l, err := link.Tracepoint(p.group, p.event, prog, nil)
		if err != nil {
			return fmt.Errorf("attaching tracepoint %s:%s: %w", p.group, p.event, err)
		}
		ks.links = append(ks.links, l)
	}
	return nil
}

// detachKernel unbinds the tables and releases links and maps.
func (o *Observer) detachKernel() error {
	o.tx.Bind(nil)
	o.rx.Bind(nil)
	if o.kernel == nil {
		return nil
	}
	err := o.kernel.close()
	o.kernel = nil
	return err
}

func (ks *kernelState) close() error {
	var errs []error
	for _, l := range ks.links {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	ks.links = nil
	ks.coll.Close()
	return errors.Join(errs...)
}
