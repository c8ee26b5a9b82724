package peers

import (
	"fmt"
	"net/netip"
)

// PeerRecord is the last reading received from one peer.
type PeerRecord struct {
	Addr         netip.Addr
	Temperature  int8
	Illumination uint8
}

func (p PeerRecord) String() string {
	return fmt.Sprintf("%s t=%d i=%d", p.Addr, p.Temperature, p.Illumination)
}
