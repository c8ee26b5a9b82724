package net

import (
	"errors"
	"net/netip"
)

var (
	// ErrWouldBlock is returned by a receive when no datagram is pending.
	ErrWouldBlock = errors.New("no datagram pending")
	// ErrDiscarded is returned by a receive that drained a datagram whose size
	// is outside [MinSize, MaxSize].
	ErrDiscarded = errors.New("datagram discarded")
	// ErrTransportClosed is returned by operations on a closed transport.
	ErrTransportClosed = errors.New("transport closed")
)

// Handler consumes one received datagram. data is only valid for the
// duration of the call.
type Handler func(from netip.Addr, data []byte)

// Transport is a broadcast medium shared by all the nodes of one network.
type Transport interface {

	// Listen starts delivering incoming datagrams to h. Datagrams this
	// node broadcast itself are delivered too; filtering them is up to
	// the consumer.
	Listen(h Handler) error

	// Broadcast sends p to every node on the medium.
	Broadcast(p Packet) error

	// LocalAddr is the address other nodes see as the sender of our
	// datagrams.
	LocalAddr() netip.Addr

	// Close permanently closes a transport.
	Close() error
}
