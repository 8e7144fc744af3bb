package cli

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"go.uber.org/zap/zaptest"
)

func TestSystemdNotifier(t *testing.T) {
	dir, err := os.MkdirTemp("", "sd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", path)

	notify := systemdNotifier(zaptest.NewLogger(t))
	notify(orchestrator.StateValidating)
	notify(orchestrator.StateRunning)
	notify(orchestrator.StateStopping)

	buf := make([]byte, 64)
	var got []string
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, string(buf[:n]))
	}
	assert.Equal(t, []string{"READY=1", "STOPPING=1"}, got)
}

func TestSystemdNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	notify := systemdNotifier(zaptest.NewLogger(t))
	assert.NotPanics(t, func() { notify(orchestrator.StateRunning) })
}
