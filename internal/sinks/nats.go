package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL string `json:"url" yaml:"url" mapstructure:"url"`
	// SubjectPrefix is prepended to the measurement (default: "ktelemetry")
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix" mapstructure:"subject_prefix"`
	// Name is the client connection name
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// MaxReconnects (default: 10)
	MaxReconnects int `json:"max_reconnects" yaml:"max_reconnects" mapstructure:"max_reconnects"`
	// ReconnectWait (default: 2s)
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait" mapstructure:"reconnect_wait"`
}

// SetDefaults applies default values to unset fields
func (c *NATSConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "ktelemetry"
	}
	if c.Name == "" {
		c.Name = "ktelemetry"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
}

// publisher is the part of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes each point as JSON on <prefix>.<measurement>.
type NATS struct {
	pub    publisher
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATS connects to the NATS server.
func NewNATS(cfg NATSConfig, logger *zap.Logger) (*NATS, error) {
	cfg.SetDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	return &NATS{pub: nc, conn: nc, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Name implements Sink.
func (s *NATS) Name() string { return "nats" }

// Subject returns the subject points of measurement are published on.
func (s *NATS) Subject(measurement string) string {
	return s.prefix + "." + measurement
}

// Write implements Sink.
func (s *NATS) Write(_ context.Context, p domain.MetricPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return &domain.SinkWriteError{Sink: s.Name(), Measurement: p.Measurement, Err: err}
	}
	if err := s.pub.Publish(s.Subject(p.Measurement), data); err != nil {
		return &domain.SinkWriteError{Sink: s.Name(), Measurement: p.Measurement, Err: err}
	}
	return nil
}

// Flush implements Flusher.
func (s *NATS) Flush(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.FlushWithContext(ctx)
}

// Close implements io.Closer.
func (s *NATS) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
