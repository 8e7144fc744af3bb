package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap/zaptest"
)

func queuePoint(queue string, bps float64) domain.MetricPoint {
	return domain.MetricPoint{
		Measurement: "nic_throughput",
		Tags:        map[string]string{"queue": queue, "device": "eth0", "direction": "tx"},
		Fields:      map[string]float64{"bps": bps, "pps": 2},
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// blockingSink holds every write until released.
type blockingSink struct {
	entered chan struct{}
	release chan struct{}
	got     *Memory
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
		got:     NewMemory("slow"),
	}
}

func (b *blockingSink) Name() string { return "slow" }

func (b *blockingSink) Write(ctx context.Context, p domain.MetricPoint) error {
	b.entered <- struct{}{}
	<-b.release
	return b.got.Write(ctx, p)
}

func TestAsyncNeverBlocks(t *testing.T) {
	next := newBlockingSink()
	async := NewAsync(next, AsyncConfig{QueueSize: 1}, nil, zaptest.NewLogger(t))

	ctx := context.Background()
	require.NoError(t, async.Write(ctx, queuePoint("0", 1)))
	<-next.entered // worker holds point 0

	require.NoError(t, async.Write(ctx, queuePoint("1", 1)))

	done := make(chan error, 1)
	go func() { done <- async.Write(ctx, queuePoint("2", 1)) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Write blocked on a full queue")
	}
	assert.Equal(t, int64(1), async.Dropped())

	close(next.release)
	require.NoError(t, async.Close())
	assert.Len(t, next.got.Points(), 2)

	assert.ErrorIs(t, async.Write(ctx, queuePoint("3", 1)), ErrSinkClosed)
}

func TestAsyncFlushDeliversInOrder(t *testing.T) {
	mem := NewMemory("mem")
	async := NewAsync(mem, AsyncConfig{}, nil, zaptest.NewLogger(t))
	defer async.Close()

	for _, q := range []string{"0", "1", "2"} {
		require.NoError(t, async.Write(context.Background(), queuePoint(q, 1)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, async.Flush(ctx))

	points := mem.Points()
	require.Len(t, points, 3)
	for i, q := range []string{"0", "1", "2"} {
		assert.Equal(t, q, points[i].Tags["queue"])
	}
}

func TestAsyncCountsDownstreamFailures(t *testing.T) {
	mem := NewMemory("mem")
	mem.Hook = func(domain.MetricPoint) error { return errors.New("rejected") }
	async := NewAsync(mem, AsyncConfig{}, nil, zaptest.NewLogger(t))

	require.NoError(t, async.Write(context.Background(), queuePoint("0", 1)))
	require.NoError(t, async.Close())
	assert.Equal(t, int64(1), async.Failed())
}

type fakeInfluxWriter struct {
	points []*write.Point
	err    error
}

func (f *fakeInfluxWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, p...)
	return nil
}

func TestInfluxSink(t *testing.T) {
	w := &fakeInfluxWriter{}
	s := &Influx{writer: w}

	p := queuePoint("3", 2048)
	require.NoError(t, s.Write(context.Background(), p))
	require.Len(t, w.points, 1)
	assert.Equal(t, "nic_throughput", w.points[0].Name())
	assert.Equal(t, p.Timestamp, w.points[0].Time())
	assert.Len(t, w.points[0].TagList(), 3)
	assert.Len(t, w.points[0].FieldList(), 2)

	w.err = errors.New("401 unauthorized")
	err := s.Write(context.Background(), p)
	var sinkErr *domain.SinkWriteError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "influx", sinkErr.Sink)
	require.NoError(t, s.Close())
}

func TestInfluxTimeoutRoundsUp(t *testing.T) {
	assert.Equal(t, uint(1), timeoutSeconds(300*time.Millisecond))
	assert.Equal(t, uint(1), timeoutSeconds(time.Second))
	assert.Equal(t, uint(2), timeoutSeconds(1500*time.Millisecond))
	assert.Equal(t, uint(5), timeoutSeconds(5*time.Second))
}

func TestInfluxConfigValidate(t *testing.T) {
	cfg := InfluxConfig{URL: "http://localhost:8086", Org: "lmp"}
	assert.True(t, domain.IsValidationError(cfg.Validate()))
	cfg.Bucket = "lmp"
	assert.NoError(t, cfg.Validate())
}

func TestPrometheusSink(t *testing.T) {
	s := NewPrometheus("ktelemetry", nil)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, queuePoint("0", 100)))
	require.NoError(t, s.Write(ctx, queuePoint("1", 250)))
	require.NoError(t, s.Write(ctx, queuePoint("0", 300)))

	g, ok := s.Gauge("nic_throughput", "bps")
	require.True(t, ok)
	// labels are sorted: device, direction, queue
	assert.Equal(t, 300.0, testutil.ToFloat64(g.WithLabelValues("eth0", "tx", "0")))
	assert.Equal(t, 250.0, testutil.ToFloat64(g.WithLabelValues("eth0", "tx", "1")))
	assert.Equal(t, 2, testutil.CollectAndCount(g))

	bad := queuePoint("2", 1)
	bad.Tags = map[string]string{"queue": "2"}
	err := s.Write(ctx, bad)
	var sinkErr *domain.SinkWriteError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "prometheus", sinkErr.Sink)
	assert.NotNil(t, s.Handler())
}

func taskPoint(pid string, duration float64) domain.MetricPoint {
	return domain.MetricPoint{
		Measurement: "picknext",
		Tags:        map[string]string{"cpu": "0", "pid": pid, "tgid": pid, "glob": "glob"},
		Fields:      map[string]float64{"duration": duration},
	}
}

func TestPrometheusForgetsKeysMissingFromWindow(t *testing.T) {
	s := NewPrometheus("ktelemetry", nil)
	ctx := context.Background()
	scope := map[string]string{"glob": "glob"}

	s.BeginWindow("picknext", scope)
	require.NoError(t, s.Write(ctx, taskPoint("10", 100)))
	require.NoError(t, s.Write(ctx, taskPoint("20", 200)))
	g, ok := s.Gauge("picknext", "duration")
	require.True(t, ok)
	assert.Equal(t, 2, testutil.CollectAndCount(g))

	s.BeginWindow("picknext", scope)
	require.NoError(t, s.Write(ctx, taskPoint("20", 50)))
	assert.Equal(t, 1, testutil.CollectAndCount(g))
	// labels are sorted: cpu, glob, pid, tgid
	assert.Equal(t, 50.0, testutil.ToFloat64(g.WithLabelValues("0", "glob", "20", "20")))
}

func TestPrometheusWindowScopedByTags(t *testing.T) {
	s := NewPrometheus("ktelemetry", nil)
	ctx := context.Background()

	rx := queuePoint("0", 10)
	rx.Tags["direction"] = "rx"
	require.NoError(t, s.Write(ctx, queuePoint("0", 100)))
	require.NoError(t, s.Write(ctx, queuePoint("1", 100)))
	require.NoError(t, s.Write(ctx, rx))

	s.BeginWindow("nic_throughput", map[string]string{"device": "eth0", "direction": "tx"})
	require.NoError(t, s.Write(ctx, queuePoint("0", 300)))

	g, ok := s.Gauge("nic_throughput", "bps")
	require.True(t, ok)
	assert.Equal(t, 2, testutil.CollectAndCount(g))
	assert.Equal(t, 10.0, testutil.ToFloat64(g.WithLabelValues("eth0", "rx", "0")))
	assert.Equal(t, 300.0, testutil.ToFloat64(g.WithLabelValues("eth0", "tx", "0")))

	// unknown measurement is a no-op
	s.BeginWindow("runqlen", nil)
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestNATSSink(t *testing.T) {
	pub := &fakePublisher{}
	s := &NATS{pub: pub, prefix: "ktelemetry"}

	p := domain.MetricPoint{
		Measurement: "picknext",
		Tags:        map[string]string{"glob": "glob", "cpu": "1", "pid": "42", "tgid": "42"},
		Fields:      map[string]float64{"duration": 1500},
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, s.Write(context.Background(), p))
	require.Equal(t, []string{"ktelemetry.picknext"}, pub.subjects)

	var decoded domain.MetricPoint
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, p.Tags, decoded.Tags)
	assert.Equal(t, 1500.0, decoded.Fields["duration"])
	assert.True(t, p.Timestamp.Equal(decoded.Timestamp))

	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, s.Close())
}

func TestNATSConfigDefaults(t *testing.T) {
	cfg := NATSConfig{}
	cfg.SetDefaults()
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, "ktelemetry", cfg.SubjectPrefix)
	assert.Equal(t, 10, cfg.MaxReconnects)
}

func TestMemoryHook(t *testing.T) {
	m := NewMemory("mem")
	m.Hook = func(p domain.MetricPoint) error {
		if p.Tags["queue"] == "1" {
			return errors.New("nope")
		}
		return nil
	}
	assert.NoError(t, m.Write(context.Background(), queuePoint("0", 1)))
	assert.Error(t, m.Write(context.Background(), queuePoint("1", 1)))
	assert.Equal(t, 2, m.Writes())
	assert.Len(t, m.Points(), 1)
	assert.NoError(t, Flush(context.Background(), m))
	assert.NoError(t, Close(m))
}
