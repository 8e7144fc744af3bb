//go:build linux && !ebpf
// +build linux,!ebpf

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap/zaptest"
)

func TestAttachWithoutEmbeddedObject(t *testing.T) {
	pick, err := NewPickNextObserver(nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	err = pick.Attach(context.Background())
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, base.ErrObjectNotEmbedded)

	runq, err := NewRunQLenObserver(nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	err = runq.Attach(context.Background())
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, base.ErrObjectNotEmbedded)
}
