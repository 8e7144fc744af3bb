package network

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// QueueCounts is the number of transmit and receive queues of a device.
type QueueCounts struct {
	TX int
	RX int
}

// DiscoverQueues counts the tx-* and rx-* entries under
// <sysfsRoot>/<device>/queues.
func DiscoverQueues(sysfsRoot, device string) (QueueCounts, error) {
	dir := filepath.Join(sysfsRoot, device, "queues")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return QueueCounts{}, domain.NewValidationError("device", device, "network interface does not exist")
		}
		return QueueCounts{}, fmt.Errorf("failed to list queues of %s: %w", device, err)
	}

	var counts QueueCounts
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Name(), "tx-"):
			counts.TX++
		case strings.HasPrefix(e.Name(), "rx-"):
			counts.RX++
		}
	}

	if counts.TX > domain.MaxBoundedKeys || counts.RX > domain.MaxBoundedKeys {
		return counts, domain.NewValidationError("device", device,
			fmt.Sprintf("more than %d queues is not supported", domain.MaxBoundedKeys))
	}
	return counts, nil
}
