package net

import (
	"fmt"
	"net"
	"net/netip"
)

// InterfaceAddrs are the IPv4 addresses a node binds and broadcasts on.
type InterfaceAddrs struct {
	Name      string
	Local     netip.Addr
	Broadcast netip.Addr
}

// ResolveInterface looks up the first IPv4 address of the named interface and
// derives its directed broadcast address from the netmask.
func ResolveInterface(name string) (InterfaceAddrs, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return InterfaceAddrs{}, fmt.Errorf("interface %q: %w", name, err)
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return InterfaceAddrs{}, fmt.Errorf("interface %q addresses: %w", name, err)
	}

	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if res, ok := broadcastOf(ipnet); ok {
			res.Name = name
			return res, nil
		}
	}

	return InterfaceAddrs{}, fmt.Errorf("interface %q has no IPv4 address", name)
}

// broadcastOf computes ip | ^mask for an IPv4 network.
func broadcastOf(ipnet *net.IPNet) (InterfaceAddrs, bool) {
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return InterfaceAddrs{}, false
	}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return InterfaceAddrs{}, false
	}

	var local, bcast [4]byte
	copy(local[:], ip4)
	for i := range bcast {
		bcast[i] = local[i] | ^mask[i]
	}

	return InterfaceAddrs{
		Local:     netip.AddrFrom4(local),
		Broadcast: netip.AddrFrom4(bcast),
	}, true
}
