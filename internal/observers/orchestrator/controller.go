// Package orchestrator drives the collection loop: it validates the run,
// attaches collaborators, ticks every pipeline on a fixed interval and tears
// everything down on budget exhaustion or cancellation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/internal/output"
	"github.com/yairfalse/ktelemetry/internal/sinks"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/yairfalse/ktelemetry/orchestrator"

// ErrAlreadyStarted is returned by Run on a controller that already ran.
var ErrAlreadyStarted = errors.New("controller already started")

// Controller owns the collection loop. A single goroutine (the caller of
// Run) performs every aggregation; collaborators write concurrently.
type Controller struct {
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer

	mu            sync.Mutex
	collaborators []domain.Collaborator
	pipelines     []Pipeline
	stats         map[string]*base.PipelineStats

	state      atomic.Int32
	iterations atomic.Int64
}

// New creates a controller
func New(cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	return &Controller{
		cfg:    cfg,
		logger: logger.Named("orchestrator"),
		tracer: cfg.TracerProvider.Tracer(tracerName),
		stats:  make(map[string]*base.PipelineStats),
	}
}

// AddCollaborator registers instrumentation attached at Run, in order.
func (c *Controller) AddCollaborator(col domain.Collaborator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collaborators = append(c.collaborators, col)
}

// AddPipeline appends a pipeline. Pipelines run in the order added.
func (c *Controller) AddPipeline(p Pipeline) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateIdle {
		return ErrAlreadyStarted
	}
	if p.Name == "" {
		return domain.NewValidationError("pipeline", nil, "name is required")
	}
	if _, exists := c.stats[p.Name]; exists {
		return domain.NewValidationError("pipeline", p.Name, "duplicate name")
	}
	c.pipelines = append(c.pipelines, p)
	c.stats[p.Name] = base.NewPipelineStats(p.Name)
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Iterations returns the number of completed ticks.
func (c *Controller) Iterations() int64 {
	return c.iterations.Load()
}

// Stats returns per-pipeline statistics keyed by pipeline name.
func (c *Controller) Stats() map[string]*base.PipelineStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*base.PipelineStats, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}

// Health reports the worst pipeline health.
func (c *Controller) Health() *domain.HealthStatus {
	worst := domain.NewHealthyStatus("all pipelines healthy")
	rank := map[domain.HealthStatusValue]int{
		domain.HealthHealthy:   0,
		domain.HealthUnknown:   1,
		domain.HealthDegraded:  2,
		domain.HealthUnhealthy: 3,
	}
	for _, s := range c.Stats() {
		h := s.Health()
		if rank[h.Status] > rank[worst.Status] {
			worst = h
		}
	}
	worst.Component = "orchestrator"
	return worst
}

// Run validates, attaches and ticks until the iteration budget is spent or
// ctx is cancelled. It returns nil in both cases. Validation failures are
// *domain.ValidationError and attach failures wrap
// domain.ErrCollaboratorUnavailable; nothing stays attached after either.
// Sinks are closed on every path.
func (c *Controller) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateValidating)) {
		return ErrAlreadyStarted
	}
	c.notify(StateValidating)
	defer c.setState(StateTerminated)

	c.mu.Lock()
	collaborators := append([]domain.Collaborator(nil), c.collaborators...)
	pipelines := append([]Pipeline(nil), c.pipelines...)
	c.mu.Unlock()

	if err := c.validate(collaborators, pipelines); err != nil {
		c.logger.Error("Configuration rejected", zap.Error(err))
		c.closeSinks(pipelines)
		return err
	}

	attached, err := c.attach(ctx, collaborators)
	if err != nil {
		c.closeSinks(pipelines)
		return err
	}

	c.setState(StateRunning)
	for _, p := range pipelines {
		p.Aggregator.Start()
	}
	c.logger.Info("Collection started",
		zap.Duration("interval", c.cfg.Interval),
		zap.Int("iterations", c.cfg.Iterations),
		zap.Int("pipelines", len(pipelines)))

	c.loop(ctx, pipelines)

	c.setState(StateStopping)
	c.shutdown(attached, pipelines)
	c.logger.Info("Collection stopped", zap.Int64("ticks", c.Iterations()))
	return nil
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.notify(s)
}

func (c *Controller) notify(s State) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

func (c *Controller) validate(collaborators []domain.Collaborator, pipelines []Pipeline) error {
	if c.cfg.Interval <= 0 {
		return domain.NewValidationError("interval", c.cfg.Interval, "must be > 0")
	}
	if c.cfg.Iterations < 0 {
		return domain.NewValidationError("count", c.cfg.Iterations, "must be >= 0")
	}
	if len(pipelines) == 0 {
		return domain.NewValidationError("pipelines", nil, "at least one pipeline is required")
	}
	for _, p := range pipelines {
		if p.Aggregator == nil || p.Router == nil {
			return domain.NewValidationError("pipeline", p.Name, "aggregator and router are required")
		}
		if n := p.Aggregator.Spec().KeySpace.Size(); n > domain.MaxBoundedKeys {
			return domain.NewValidationError("key_space", n,
				fmt.Sprintf("over the %d key limit", domain.MaxBoundedKeys))
		}
	}
	for _, col := range collaborators {
		if err := col.Validate(); err != nil {
			return fmt.Errorf("collaborator %s: %w", col.Name(), err)
		}
	}
	return nil
}

// attach attaches collaborators in order. On failure the ones already
// attached are detached in reverse order.
func (c *Controller) attach(ctx context.Context, collaborators []domain.Collaborator) ([]domain.Collaborator, error) {
	attached := make([]domain.Collaborator, 0, len(collaborators))
	for _, col := range collaborators {
		if err := col.Attach(ctx); err != nil {
			c.detach(attached)
			if !errors.Is(err, domain.ErrCollaboratorUnavailable) {
				err = fmt.Errorf("%w: %w", domain.ErrCollaboratorUnavailable, err)
			}
			c.logger.Error("Failed to attach collaborator",
				zap.String("collaborator", col.Name()), zap.Error(err))
			return nil, fmt.Errorf("failed to attach %s: %w", col.Name(), err)
		}
		c.logger.Debug("Collaborator attached", zap.String("collaborator", col.Name()))
		attached = append(attached, col)
	}
	return attached, nil
}

func (c *Controller) detach(attached []domain.Collaborator) {
	for i := len(attached) - 1; i >= 0; i-- {
		if err := attached[i].Detach(); err != nil {
			c.logger.Warn("Failed to detach collaborator",
				zap.String("collaborator", attached[i].Name()), zap.Error(err))
		}
	}
}

func (c *Controller) loop(ctx context.Context, pipelines []Pipeline) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// The tick in flight finishes even if ctx is cancelled meanwhile.
	tickCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		c.tick(tickCtx, c.iterations.Load()+1, pipelines)

		n := c.iterations.Add(1)
		if c.cfg.Iterations > 0 && n >= int64(c.cfg.Iterations) {
			return
		}
	}
}

// tick runs every pipeline in order. Failures are isolated per pipeline and
// per sink.
func (c *Controller) tick(ctx context.Context, iteration int64, pipelines []Pipeline) {
	ctx, span := c.tracer.Start(ctx, "tick",
		trace.WithAttributes(attribute.Int64("ktelemetry.iteration", iteration)))
	defer span.End()

	at := c.cfg.Clock()
	sections := make([]output.Section, 0, len(pipelines))

	for _, p := range pipelines {
		if sec := c.runPipeline(ctx, p); sec != nil {
			sections = append(sections, *sec)
		}
	}

	if c.cfg.Console != nil {
		if err := c.cfg.Console.PrintTick(at, sections); err != nil {
			c.logger.Warn("Failed to print tick", zap.Error(err))
		}
	}
}

// runPipeline aggregates one table and routes the snapshot. It returns the
// console section, if any.
func (c *Controller) runPipeline(ctx context.Context, p Pipeline) *output.Section {
	ctx, span := c.tracer.Start(ctx, "pipeline",
		trace.WithAttributes(attribute.String("ktelemetry.pipeline", p.Name)))
	defer span.End()

	stats := c.stats[p.Name]

	start := time.Now()
	snap, err := p.Aggregator.Aggregate(ctx)
	c.cfg.Instruments.RecordAggregate(ctx, p.Name, time.Since(start), err)
	if err != nil {
		stats.RecordAggregateError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		c.logger.Warn("Failed to aggregate",
			zap.String("pipeline", p.Name), zap.Error(err))
		return nil
	}
	span.SetAttributes(attribute.Int("ktelemetry.rows", len(snap.Rows)))

	routed := p.Router.Route(ctx, snap)
	for _, res := range routed.Results {
		c.cfg.Instruments.RecordWrite(ctx, res.Sink, res.Written, res.Failed)
		stats.RecordPoints(res.Written)
		if res.Err != nil {
			stats.RecordSinkError(res.Err)
			span.RecordError(res.Err, trace.WithAttributes(attribute.String("ktelemetry.sink", res.Sink)))
			c.logger.Warn("Sink rejected points",
				zap.String("pipeline", p.Name),
				zap.String("sink", res.Sink),
				zap.Int("failed", res.Failed),
				zap.Error(res.Err))
		}
	}
	stats.RecordTick(snap.At)
	c.cfg.Instruments.RecordTick(ctx, p.Name)
	return routed.Section
}

// shutdown detaches collaborators, then flushes and closes each distinct
// sink once.
func (c *Controller) shutdown(attached []domain.Collaborator, pipelines []Pipeline) {
	c.detach(attached)
	c.closeSinks(pipelines)

	for name, s := range c.Stats() {
		c.logger.Debug("Pipeline stats",
			zap.String("pipeline", name),
			zap.Int64("ticks", s.Ticks()),
			zap.Int64("points", s.PointsWritten()),
			zap.Int64("aggregate_errors", s.AggregateErrors()),
			zap.Int64("sink_errors", s.SinkErrors()))
	}
}

func (c *Controller) closeSinks(pipelines []Pipeline) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	for _, s := range distinctSinks(pipelines) {
		if err := sinks.Flush(ctx, s); err != nil {
			c.logger.Warn("Failed to flush sink", zap.String("sink", s.Name()), zap.Error(err))
		}
		if err := sinks.Close(s); err != nil {
			c.logger.Warn("Failed to close sink", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}

func distinctSinks(pipelines []Pipeline) []sinks.Sink {
	seen := make(map[sinks.Sink]bool)
	var out []sinks.Sink
	for _, p := range pipelines {
		if p.Router == nil {
			continue
		}
		for _, s := range p.Router.Sinks() {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
