package sinks

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

// InfluxConfig holds InfluxDB v2 connection settings
type InfluxConfig struct {
	URL    string `json:"url" yaml:"url" mapstructure:"url"`
	Token  string `json:"token" yaml:"token" mapstructure:"token"`
	Org    string `json:"org" yaml:"org" mapstructure:"org"`
	Bucket string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	// Timeout for one HTTP write (default: 5s)
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Validate validates the configuration
func (c *InfluxConfig) Validate() error {
	if c.URL == "" {
		return domain.NewValidationError("influx.url", nil, "is required")
	}
	if c.Org == "" {
		return domain.NewValidationError("influx.org", nil, "is required")
	}
	if c.Bucket == "" {
		return domain.NewValidationError("influx.bucket", nil, "is required")
	}
	return nil
}

// pointWriter is the part of influxdb2's blocking write API the sink uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes points to an InfluxDB v2 bucket with the blocking write API.
type Influx struct {
	writer pointWriter
	client influxdb2.Client
	logger *zap.Logger
}

// NewInflux connects to InfluxDB. Connectivity is not checked here; a
// rejected write surfaces as a SinkWriteError on the tick that sent it.
func NewInflux(cfg InfluxConfig, logger *zap.Logger) (*Influx, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(timeoutSeconds(cfg.Timeout)).
		SetPrecision(time.Nanosecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	logger.Info("InfluxDB sink configured",
		zap.String("url", cfg.URL),
		zap.String("org", cfg.Org),
		zap.String("bucket", cfg.Bucket))

	return &Influx{
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		client: client,
		logger: logger.Named("influx"),
	}, nil
}

// Name implements Sink.
func (s *Influx) Name() string { return "influx" }

// Write implements Sink.
func (s *Influx) Write(ctx context.Context, p domain.MetricPoint) error {
	if err := s.writer.WritePoint(ctx, ToInfluxPoint(p)); err != nil {
		return &domain.SinkWriteError{Sink: s.Name(), Measurement: p.Measurement, Err: err}
	}
	return nil
}

// Close implements io.Closer.
func (s *Influx) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// ToInfluxPoint converts a metric point to the client's point type.
func ToInfluxPoint(p domain.MetricPoint) *write.Point {
	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	return influxdb2.NewPoint(p.Measurement, p.Tags, fields, p.Timestamp)
}

// timeoutSeconds rounds d up to whole seconds, the client's resolution.
func timeoutSeconds(d time.Duration) uint {
	return uint((d + time.Second - 1) / time.Second)
}
