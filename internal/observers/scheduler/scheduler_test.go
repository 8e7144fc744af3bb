package scheduler

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/ktelemetry/internal/aggregator"
	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap/zaptest"
)

func TestConfigDefaults(t *testing.T) {
	pick, err := NewPickNextObserver(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "picknext", pick.Name())
	assert.Empty(t, pick.config.ObjectPath, "embedded object by default")

	runq, err := NewRunQLenObserver(&Config{Name: "rq"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rq", runq.Name())
	assert.Equal(t, DefaultFrequency, runq.config.Frequency)
	assert.Equal(t, 8, runq.config.PerfBufferPages)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"negative frequency", Config{Frequency: -1}, "frequency"},
		{"odd perf pages", Config{PerfBufferPages: 3}, "perf_buffer_pages"},
		{"negative mock interval", Config{MockInterval: -time.Second}, "mock_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *domain.ValidationError
			require.ErrorAs(t, tt.cfg.Validate(), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.NoError(t, (&Config{PerfBufferPages: 16}).Validate())
}

func TestTaskCodec(t *testing.T) {
	key, c := taskCodec.Decode(taskKey{CPU: 2, PID: 300, TGID: 299}, latencyValue{TotalNs: 1500, Count: 3})
	assert.Equal(t, domain.TaskKey(2, 300, 299), key)
	assert.Equal(t, domain.Counters{Sum: 1500, Count: 3}, c)
	assert.Equal(t, taskKey{CPU: 2, PID: 300, TGID: 299}, taskCodec.Encode(key))
}

func TestDecodeRunQSample(t *testing.T) {
	raw := make([]byte, runqSampleSize)
	binary.LittleEndian.PutUint32(raw[0:4], 5)
	binary.LittleEndian.PutUint32(raw[4:8], 3)

	n, err := decodeRunQSample(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), n)

	_, err = decodeRunQSample(raw[:3])
	assert.Error(t, err)
}

func TestPickNextTables(t *testing.T) {
	o, err := NewPickNextObserver(nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, o.Validate())

	tables := o.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, "dist", tables[0].Table.Name())
	assert.Equal(t, "picknext", tables[0].Spec.Measurement)
	assert.Equal(t, []string{"cpu", "pid", "tgid"}, tables[0].Spec.KeyFields)
	assert.Equal(t, "glob", tables[0].Spec.Tags["glob"])
	assert.NoError(t, o.Detach())
}

// Samples pushed by the reader end up as a distribution on the total row.
func TestRunQLenSamplesAggregate(t *testing.T) {
	o, err := NewRunQLenObserver(nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, o.Validate())

	st := o.Tables()[0]
	agg, err := aggregator.New(st.Table, st.Spec, aggregator.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, n := range []uint32{0, 1, 1, 2, 2, 2} {
		o.Record(n)
	}

	snap, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Rows, 3)
	assert.Equal(t, domain.Counters{Sum: 6, Count: 3}, snap.Rows[2].Counters)
	assert.Equal(t, uint64(6), snap.Total.Counters.Count)
	require.NotNil(t, snap.Distribution)
	assert.Equal(t, int64(6), snap.Distribution.Samples)
	assert.Equal(t, int64(2), snap.Distribution.Max)

	snap, err = agg.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Rows)
	assert.Zero(t, snap.Distribution.Samples)
}

func TestFactoriesRegistered(t *testing.T) {
	for _, kind := range []string{config.KindPickNext, config.KindRunQLen} {
		_, ok := orchestrator.GetSourceFactory(kind)
		assert.True(t, ok, kind)
	}

	src, err := RunQLenFactory(&config.SourceConfig{Kind: config.KindRunQLen, Name: "runqlen", Frequency: 99}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "runqlen", src.Collaborator.Name())
	require.Len(t, src.Tables, 1)

	src, err = orchestrator.BuildSource(&config.SourceConfig{Kind: config.KindPickNext, Name: "sched", Tags: map[string]string{"host": "n1", "glob": "override"}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "n1", src.Tables[0].Spec.Tags["host"])
	assert.Equal(t, "glob", src.Tables[0].Spec.Tags["glob"], "fixed tags win")
}
