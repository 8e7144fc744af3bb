package output

import (
	"context"

	"github.com/yairfalse/ktelemetry/internal/sinks"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// SinkResult is the outcome of handing one window's points to one sink.
type SinkResult struct {
	Sink    string
	Written int
	Failed  int
	// Err is the first rejection of the window.
	Err error
}

// Routed is everything produced from one snapshot.
type Routed struct {
	// Section is set when the pipeline prints to the console.
	Section *Section
	Points  []domain.MetricPoint
	Results []SinkResult
}

// Router formats a snapshot once and fans it out to the console section
// buffer and every point sink. A failing sink never stops the others.
type Router struct {
	spec    domain.TableSpec
	sinks   []sinks.Sink
	console bool
}

// NewRouter creates a router. console selects console mode; sinks select
// metric-point mode. Both may be set.
func NewRouter(spec domain.TableSpec, console bool, points ...sinks.Sink) *Router {
	return &Router{spec: spec, console: console, sinks: points}
}

// Sinks returns the point sinks.
func (r *Router) Sinks() []sinks.Sink {
	return r.sinks
}

// Route formats snap and writes its points to every sink.
func (r *Router) Route(ctx context.Context, snap *domain.WindowSnapshot) Routed {
	var out Routed
	if r.console {
		sec := FormatTable(snap, r.spec)
		out.Section = &sec
	}
	if len(r.sinks) == 0 {
		return out
	}

	out.Points = FormatPoints(snap, r.spec)
	out.Results = make([]SinkResult, 0, len(r.sinks))
	for _, s := range r.sinks {
		sinks.BeginWindow(s, r.spec.Measurement, r.spec.Tags)
		res := SinkResult{Sink: s.Name()}
		for _, p := range out.Points {
			if err := s.Write(ctx, p); err != nil {
				res.Failed++
				if res.Err == nil {
					res.Err = err
				}
				continue
			}
			res.Written++
		}
		out.Results = append(out.Results, res)
	}
	return out
}
