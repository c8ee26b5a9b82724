package net

import (
	"fmt"
	"net/netip"
	"sync"
)

type inmemDatagram struct {
	from netip.Addr
	to   *InmemTransport
	data []byte
}

// InmemNetwork is an in-memory broadcast segment, to allow nodes to be tested
// without going over a network. Broadcasts are queued, in order, and only
// delivered by Flush, so tests decide exactly when the medium moves.
type InmemNetwork struct {
	sync.Mutex
	members []*InmemTransport
	queue   []inmemDatagram
}

// NewInmemNetwork returns an empty segment.
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{}
}

// InmemTransport implements the Transport interface over an InmemNetwork.
type InmemTransport struct {
	network *InmemNetwork
	local   netip.Addr
	handler Handler
	closed  bool
}

// NewInmemTransport attaches a transport with address addr to the network.
func (n *InmemNetwork) NewInmemTransport(addr netip.Addr) *InmemTransport {
	trans := &InmemTransport{
		network: n,
		local:   addr,
	}

	n.Lock()
	n.members = append(n.members, trans)
	n.Unlock()

	return trans
}

// Inject queues raw bytes as if from had broadcast them. Tests use it to put
// malformed datagrams on the wire.
func (n *InmemNetwork) Inject(from netip.Addr, data []byte) {
	n.Lock()
	defer n.Unlock()
	n.enqueue(from, data)
}

func (n *InmemNetwork) enqueue(from netip.Addr, data []byte) {
	for _, m := range n.members {
		if m.closed {
			continue
		}
		n.queue = append(n.queue, inmemDatagram{
			from: from,
			to:   m,
			data: append([]byte(nil), data...),
		})
	}
}

// Pending returns the number of datagrams waiting for Flush.
func (n *InmemNetwork) Pending() int {
	n.Lock()
	defer n.Unlock()
	return len(n.queue)
}

// Flush delivers queued datagrams until the queue is empty, including the
// ones broadcast by handlers along the way. It gives up after limit
// deliveries, so two nodes answering each other forever fail a test instead
// of hanging it, and returns how many were delivered.
func (n *InmemNetwork) Flush(limit int) (int, error) {
	delivered := 0
	for {
		n.Lock()
		if len(n.queue) == 0 {
			n.Unlock()
			return delivered, nil
		}
		if delivered >= limit {
			n.Unlock()
			return delivered, fmt.Errorf("inmem network still busy after %d deliveries", limit)
		}
		d := n.queue[0]
		n.queue = n.queue[1:]
		n.Unlock()

		if d.to.handler != nil && !d.to.closed {
			d.to.handler(d.from, d.data)
		}
		delivered++
	}
}

// Listen implements the Transport interface.
func (i *InmemTransport) Listen(h Handler) error {
	if i.closed {
		return ErrTransportClosed
	}
	i.handler = h
	return nil
}

// Broadcast implements the Transport interface.
func (i *InmemTransport) Broadcast(p Packet) error {
	if i.closed {
		return ErrTransportClosed
	}

	i.network.Lock()
	defer i.network.Unlock()
	i.network.enqueue(i.local, Encode(p))

	return nil
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() netip.Addr {
	return i.local
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.network.Lock()
	defer i.network.Unlock()
	i.closed = true
	return nil
}
