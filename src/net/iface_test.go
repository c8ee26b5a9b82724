package net

import (
	"net"
	"net/netip"
	"testing"
)

func TestBroadcastOf(t *testing.T) {
	for _, c := range []struct {
		cidr  string
		local string
		bcast string
	}{
		{"192.168.1.17/24", "192.168.1.17", "192.168.1.255"},
		{"10.1.2.3/8", "10.1.2.3", "10.255.255.255"},
		{"172.16.5.4/30", "172.16.5.4", "172.16.5.7"},
	} {
		ip, ipnet, err := net.ParseCIDR(c.cidr)
		if err != nil {
			t.Fatalf("ParseCIDR(%s): %v", c.cidr, err)
		}
		ipnet.IP = ip

		got, ok := broadcastOf(ipnet)
		if !ok {
			t.Fatalf("%s: not recognised as IPv4", c.cidr)
		}
		if got.Local != netip.MustParseAddr(c.local) || got.Broadcast != netip.MustParseAddr(c.bcast) {
			t.Fatalf("%s: got %v / %v", c.cidr, got.Local, got.Broadcast)
		}
	}

	_, v6, _ := net.ParseCIDR("fe80::1/64")
	if _, ok := broadcastOf(v6); ok {
		t.Fatalf("IPv6 networks have no broadcast address")
	}
}

func TestResolveUnknownInterface(t *testing.T) {
	if _, err := ResolveInterface("no-such-iface0"); err == nil {
		t.Fatalf("ResolveInterface should fail for a missing interface")
	}
}
