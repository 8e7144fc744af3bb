//go:build !linux
// +build !linux

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMockProducers(t *testing.T) {
	pick, err := NewPickNextObserver(&Config{MockInterval: time.Millisecond}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, pick.Attach(context.Background()))
	assert.Eventually(t, func() bool { return pick.dist.Len() > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, pick.Detach())

	runq, err := NewRunQLenObserver(&Config{MockInterval: time.Millisecond}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, runq.Attach(context.Background()))
	assert.Eventually(t, func() bool {
		raw, _ := runq.table.Read(context.Background())
		return len(raw) > 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, runq.Detach())
}
