package sinks

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// Prometheus exposes the latest window of every series as gauges. The tag
// keys of the first point of a measurement fix its label set.
type Prometheus struct {
	namespace string
	registry  *prometheus.Registry

	mu     sync.Mutex
	labels map[string][]string               // measurement -> label names
	gauges map[string]*prometheus.GaugeVec   // measurement_field -> gauge
	byMeas map[string][]*prometheus.GaugeVec // measurement -> its gauges
}

// NewPrometheus registers gauges on registry. A nil registry gets a fresh one.
func NewPrometheus(namespace string, registry *prometheus.Registry) *Prometheus {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Prometheus{
		namespace: namespace,
		registry:  registry,
		labels:    make(map[string][]string),
		gauges:    make(map[string]*prometheus.GaugeVec),
		byMeas:    make(map[string][]*prometheus.GaugeVec),
	}
}

// Name implements Sink.
func (s *Prometheus) Name() string { return "prometheus" }

// Registry returns the registry the gauges live on.
func (s *Prometheus) Registry() *prometheus.Registry { return s.registry }

// Handler serves the registry in the Prometheus exposition format.
func (s *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Write implements Sink.
func (s *Prometheus) Write(_ context.Context, p domain.MetricPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, ok := s.labels[p.Measurement]
	if !ok {
		names = make([]string, 0, len(p.Tags))
		for k := range p.Tags {
			names = append(names, sanitize(k))
		}
		sort.Strings(names)
		s.labels[p.Measurement] = names
	}

	values := make([]string, len(names))
	if len(p.Tags) != len(names) {
		return s.reject(p, fmt.Errorf("tag set %v does not match labels %v", keys(p.Tags), names))
	}
	for k, v := range p.Tags {
		i := sort.SearchStrings(names, sanitize(k))
		if i >= len(names) || names[i] != sanitize(k) {
			return s.reject(p, fmt.Errorf("unexpected tag %q", k))
		}
		values[i] = v
	}

	for field, v := range p.Fields {
		g, err := s.gauge(p.Measurement, field, names)
		if err != nil {
			return s.reject(p, err)
		}
		g.WithLabelValues(values...).Set(v)
	}
	return nil
}

// BeginWindow implements WindowStarter. Series of measurement matching scope
// are dropped; the points of the new window recreate the ones still present.
func (s *Prometheus) BeginWindow(measurement string, scope map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, ok := s.labels[measurement]
	if !ok {
		return
	}
	match := make(prometheus.Labels, len(scope))
	for k, v := range scope {
		k = sanitize(k)
		i := sort.SearchStrings(names, k)
		if i < len(names) && names[i] == k {
			match[k] = v
		}
	}
	for _, g := range s.byMeas[measurement] {
		if len(match) == 0 {
			g.Reset()
			continue
		}
		g.DeletePartialMatch(match)
	}
}

// Gauge returns the gauge vector for measurement and field, if registered.
func (s *Prometheus) Gauge(measurement, field string) (*prometheus.GaugeVec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gauges[measurement+"_"+field]
	return g, ok
}

func (s *Prometheus) gauge(measurement, field string, labels []string) (*prometheus.GaugeVec, error) {
	id := measurement + "_" + field
	if g, ok := s.gauges[id]; ok {
		return g, nil
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Subsystem: sanitize(measurement),
		Name:      sanitize(field),
		Help:      fmt.Sprintf("Latest window value of %s %s", measurement, field),
	}, labels)
	if err := s.registry.Register(g); err != nil {
		return nil, fmt.Errorf("failed to register gauge %s: %w", id, err)
	}
	s.gauges[id] = g
	s.byMeas[measurement] = append(s.byMeas[measurement], g)
	return g, nil
}

func (s *Prometheus) reject(p domain.MetricPoint, err error) error {
	return &domain.SinkWriteError{Sink: s.Name(), Measurement: p.Measurement, Err: err}
}

// sanitize maps a tag or field name onto the Prometheus name charset.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
