package sinks

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrQueueFull is returned by Async.Write when the queue has no room.
	ErrQueueFull = errors.New("sink queue full")
	// ErrSinkClosed is returned by Async.Write after Close.
	ErrSinkClosed = errors.New("sink closed")
)

// AsyncConfig holds async sink configuration
type AsyncConfig struct {
	// QueueSize bounds the number of pending points (default: 1024)
	QueueSize int
	// WriteTimeout bounds one downstream write (default: 5s)
	WriteTimeout time.Duration
	// ShutdownTimeout bounds Close (default: 5s)
	ShutdownTimeout time.Duration
}

// Async decouples a slow sink from the collection loop. Write enqueues and
// returns immediately; one worker delivers points in order.
type Async struct {
	next        Sink
	cfg         AsyncConfig
	logger      *zap.Logger
	instruments *base.Instruments
	lifecycle   *base.LifecycleManager
	errLog      *rate.Limiter

	queue   chan asyncItem
	dropped atomic.Int64
	failed  atomic.Int64
}

type asyncItem struct {
	point domain.MetricPoint
	done  chan struct{}
}

// NewAsync wraps next and starts its worker.
func NewAsync(next Sink, cfg AsyncConfig, instruments *base.Instruments, logger *zap.Logger) *Async {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("async").With(zap.String("sink", next.Name()))

	a := &Async{
		next:        next,
		cfg:         cfg,
		logger:      logger,
		instruments: instruments,
		lifecycle:   base.NewLifecycleManager(context.Background(), logger),
		errLog:      rate.NewLimiter(rate.Every(10*time.Second), 1),
		queue:       make(chan asyncItem, cfg.QueueSize),
	}
	a.lifecycle.Start("async-writer", a.run)
	return a
}

// Name implements Sink.
func (a *Async) Name() string { return a.next.Name() }

// Write implements Sink. It never blocks.
func (a *Async) Write(ctx context.Context, point domain.MetricPoint) error {
	if a.lifecycle.IsShuttingDown() {
		return ErrSinkClosed
	}
	select {
	case a.queue <- asyncItem{point: point}:
		return nil
	default:
		a.dropped.Add(1)
		a.instruments.RecordDrop(ctx, a.next.Name())
		return ErrQueueFull
	}
}

// Flush blocks until every point queued before the call is delivered.
func (a *Async) Flush(ctx context.Context) error {
	if a.lifecycle.IsShuttingDown() {
		return nil
	}
	marker := asyncItem{done: make(chan struct{})}
	select {
	case a.queue <- marker:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.lifecycle.Context().Done():
		return nil
	}
	select {
	case <-marker.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return Flush(ctx, a.next)
}

// Close drains the queue, stops the worker and closes the wrapped sink.
func (a *Async) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.Flush(ctx); err != nil {
		a.logger.Warn("Flush before close failed", zap.Error(err))
	}
	if err := a.lifecycle.Stop(a.cfg.ShutdownTimeout); err != nil {
		return err
	}
	return Close(a.next)
}

// Dropped returns points rejected because the queue was full.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Failed returns points the wrapped sink rejected.
func (a *Async) Failed() int64 { return a.failed.Load() }

func (a *Async) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-a.queue:
			if item.done != nil {
				close(item.done)
				continue
			}
			a.deliver(item.point)
		}
	}
}

// deliver writes one point downstream. Successes were already counted when
// the point was enqueued; only failures are recorded here.
func (a *Async) deliver(point domain.MetricPoint) {
	ctx, cancel := context.WithTimeout(a.lifecycle.Context(), a.cfg.WriteTimeout)
	defer cancel()

	if err := a.next.Write(ctx, point); err != nil {
		a.failed.Add(1)
		a.instruments.RecordWrite(ctx, a.next.Name(), 0, 1)
		if a.errLog.Allow() {
			a.logger.Warn("Async sink write failed",
				zap.String("measurement", point.Measurement),
				zap.Int64("failed_total", a.failed.Load()),
				zap.Error(err))
		}
	}
}
