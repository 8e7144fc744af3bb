package network

import (
	"github.com/yairfalse/ktelemetry/internal/observers/base"
	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// Map names in nic_throughput.o.
const (
	txMapName   = "tx_q"
	rxMapName   = "rx_q"
	nameMapName = "name_map"
)

// queueData mirrors struct queue_data in bpf_src/nic_throughput.c.
type queueData struct {
	TotalPktLen uint64
	NumPkt      uint64
}

var queueCodec = base.MapCodec[uint16, queueData]{
	Decode: func(k uint16, v queueData) (domain.Key, domain.Counters) {
		return domain.QueueKey(k), domain.Counters{Sum: v.TotalPktLen, Count: v.NumPkt}
	},
	Encode: func(key domain.Key) uint16 {
		return uint16(key[0])
	},
}

// devName encodes device as the NUL-padded name_map value.
func devName(device string) [MaxDeviceNameLength + 1]byte {
	var buf [MaxDeviceNameLength + 1]byte
	copy(buf[:MaxDeviceNameLength], device)
	return buf
}
