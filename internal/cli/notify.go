package cli

import (
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
	"go.uber.org/zap"
)

// systemdNotifier tells systemd the collector is ready once every
// collaborator is attached, and that it is stopping. Outside a Type=notify
// unit (no NOTIFY_SOCKET) it does nothing.
func systemdNotifier(logger *zap.Logger) func(orchestrator.State) {
	return func(s orchestrator.State) {
		var state string
		switch s {
		case orchestrator.StateRunning:
			state = daemon.SdNotifyReady
		case orchestrator.StateStopping:
			state = daemon.SdNotifyStopping
		default:
			return
		}
		sent, err := daemon.SdNotify(false, state)
		if err != nil {
			logger.Warn("Failed to notify systemd", zap.String("state", state), zap.Error(err))
			return
		}
		if sent {
			logger.Debug("Notified systemd", zap.String("state", state))
		}
	}
}
