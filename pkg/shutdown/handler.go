// Package shutdown runs cleanup functions in reverse registration order
// under a shared deadline.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler manages graceful shutdown
type Handler struct {
	mu      sync.Mutex
	fns     []namedFn
	timeout time.Duration
	logger  *zap.Logger
	once    sync.Once
	err     error
}

type namedFn struct {
	name string
	fn   func(context.Context) error
}

// NewHandler creates a new shutdown handler
func NewHandler(timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{timeout: timeout, logger: logger.Named("shutdown")}
}

// Register registers a cleanup function
func (h *Handler) Register(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, namedFn{name: name, fn: fn})
}

// RegisterCloser registers a function without a context, such as Close.
func (h *Handler) RegisterCloser(name string, fn func() error) {
	h.Register(name, func(context.Context) error { return fn() })
}

// Run executes cleanup functions once, last registered first. Every function
// runs even if an earlier one failed; the errors are joined.
func (h *Handler) Run() error {
	h.once.Do(func() {
		h.err = h.execute()
	})
	return h.err
}

func (h *Handler) execute() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	fns := make([]namedFn, len(h.fns))
	copy(fns, h.fns)
	h.mu.Unlock()

	start := time.Now()
	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			h.logger.Warn("Shutdown timeout exceeded, skipping remaining cleanup",
				zap.Int("skipped", i+1))
			errs = append(errs, fmt.Errorf("cleanup skipped: %w", ctx.Err()))
			break
		}

		began := time.Now()
		if err := fns[i].fn(ctx); err != nil {
			h.logger.Warn("Cleanup failed",
				zap.String("component", fns[i].name),
				zap.Duration("took", time.Since(began)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", fns[i].name, err))
			continue
		}
		h.logger.Debug("Cleaned up",
			zap.String("component", fns[i].name),
			zap.Duration("took", time.Since(began)))
	}

	h.logger.Debug("Shutdown completed",
		zap.Int("errors", len(errs)),
		zap.Duration("took", time.Since(start)))
	return errors.Join(errs...)
}
