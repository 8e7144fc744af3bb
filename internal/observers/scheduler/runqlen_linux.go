//go:build linux
// +build linux

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/perf"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type runqKernelState struct {
	coll      *ebpf.Collection
	events    []int
	reader    *perf.Reader
	lifecycle *base.LifecycleManager
}

// attachKernel loads the runqlen program, opens one CPU-clock perf event per CPU at
// the configured frequency and starts the perf buffer reader.
func (o *RunQLenObserver) attachKernel(_ context.Context) error {
	coll, err := base.LoadCollection(o.config.ObjectPath, runQLenSpec, o.logger)
	if err != nil {
		return err
	}
	ks := &runqKernelState{coll: coll}

	prog := coll.Programs["do_perf_event"]
	result := coll.Maps[resultMapName]
	if prog == nil || result == nil {
		ks.close()
		return fmt.Errorf("%s lacks program do_perf_event or map %s",
			base.ObjectSource(o.config.ObjectPath, "runqlen"), resultMapName)
	}

	if err := ks.openPerfEvents(prog, o.config.Frequency); err != nil {
		ks.close()
		return err
	}

	ks.reader, err = perf.NewReader(result, os.Getpagesize()*o.config.PerfBufferPages)
	if err != nil {
		ks.close()
		return fmt.Errorf("creating perf reader: %w", err)
	}

	ks.lifecycle = base.NewLifecycleManager(context.Background(), o.logger)
	ks.lifecycle.Start("runqlen-reader", func(ctx context.Context) {
		o.readSamples(ctx, ks.reader)
	})

	o.kernel = ks
	return nil
}

func (ks *runqKernelState) openPerfEvents(prog *ebpf.Program, frequency int) error {
	ncpu, err := ebpf.PossibleCPU()
	if err != nil {
		return fmt.Errorf("counting CPUs: %w", err)
	}

	for cpu := 0; cpu < ncpu; cpu++ {
		attr := unix.PerfEventAttr{
			Type:   unix.PERF_TYPE_SOFTWARE,
			Config: unix.PERF_COUNT_SW_CPU_CLOCK,
			Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
			Sample: uint64(frequency),
			Bits:   unix.PerfBitFreq,
		}
		fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			if errors.Is(err, unix.ENODEV) {
				// offline CPU
				continue
			}
			return fmt.Errorf("opening perf event on cpu %d: %w", cpu, err)
		}
		ks.events = append(ks.events, fd)

		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_SET_BPF, prog.FD()); err != nil {
			return fmt.Errorf("attaching program on cpu %d: %w", cpu, err)
		}
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
			return fmt.Errorf("enabling perf event on cpu %d: %w", cpu, err)
		}
	}
	if len(ks.events) == 0 {
		return fmt.Errorf("no online CPU accepted a perf event")
	}
	return nil
}

// readSamples moves perf records into the event table until the reader is
// closed.
func (o *RunQLenObserver) readSamples(ctx context.Context, reader *perf.Reader) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, perf.ErrClosed) {
				return
			}
			o.logger.Warn("Failed to read from perf buffer", zap.Error(err))
			continue
		}
		if record.LostSamples > 0 {
			o.table.AddLost(record.LostSamples)
			continue
		}

		length, err := decodeRunQSample(record.RawSample)
		if err != nil {
			o.logger.Debug("Dropping malformed sample", zap.Error(err))
			continue
		}
		o.table.Record(length)
	}
}

func (o *RunQLenObserver) detachKernel() error {
	if o.kernel == nil {
		return nil
	}
	err := o.kernel.close()
	o.kernel = nil
	return err
}

// close disables the perf events, then closes the reader so the read loop
// returns, then waits for it.
func (ks *runqKernelState) close() error {
	var errs []error
	for _, fd := range ks.events {
		_ = unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0)
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
	}
	ks.events = nil

	if ks.reader != nil {
		if err := ks.reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if ks.lifecycle != nil {
		if err := ks.lifecycle.Stop(2 * time.Second); err != nil {
			errs = append(errs, err)
		}
	}
	ks.coll.Close()
	return errors.Join(errs...)
}
