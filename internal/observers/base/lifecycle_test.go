package base

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLifecycleManagerStop(t *testing.T) {
	lm := NewLifecycleManager(context.Background(), zaptest.NewLogger(t))

	started := make(chan struct{})
	lm.Start("worker", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	assert.Equal(t, int32(1), lm.Running())
	assert.False(t, lm.IsShuttingDown())

	require.NoError(t, lm.Stop(time.Second))
	assert.True(t, lm.IsShuttingDown())
	assert.Equal(t, int32(0), lm.Running())

	// second stop is harmless
	require.NoError(t, lm.Stop(time.Second))
}

func TestLifecycleManagerTimeout(t *testing.T) {
	lm := NewLifecycleManager(context.Background(), nil)

	release := make(chan struct{})
	defer close(release)
	lm.Start("stuck", func(ctx context.Context) {
		<-release
	})

	err := lm.Stop(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
}
