//go:build linux

package net

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/mosaicnetworks/sensornet/src/common"
	"github.com/mosaicnetworks/sensornet/src/reactor"
	"github.com/mosaicnetworks/sensornet/src/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// UDPTransport broadcasts datagrams on an IPv4 segment. It is driven by a
// reactor: Listen posts a persistent Read job for the socket, and every
// readiness delivers at most one datagram.
type UDPTransport struct {
	fd      int
	port    int
	addrs   InterfaceAddrs
	reactor *reactor.Reactor
	buf     *common.Buffer
	handler Handler
	closed  bool
	logger  *logrus.Entry
}

// NewUDPTransport opens a non-blocking broadcast socket bound to port on all
// local addresses. Port 0 picks an ephemeral port, which is then also the
// destination port of broadcasts.
func NewUDPTransport(r *reactor.Reactor, addrs InterfaceAddrs, port int, logger *logrus.Entry) (*UDPTransport, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	for _, opt := range []int{unix.SO_BROADCAST, unix.SO_REUSEADDR} {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, opt, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("setsockopt: %w", err)
		}
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind :%d: %w", port, err)
	}

	if port == 0 {
		sa, err := unix.Getsockname(fd)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("getsockname: %w", err)
		}
		port = sa.(*unix.SockaddrInet4).Port
	}

	return &UDPTransport{
		fd:      fd,
		port:    port,
		addrs:   addrs,
		reactor: r,
		buf:     common.NewBuffer(MinSize, true),
		logger:  logger,
	}, nil
}

// Listen implements the Transport interface.
func (u *UDPTransport) Listen(h Handler) error {
	if u.closed {
		return ErrTransportClosed
	}
	u.handler = h
	u.reactor.Post(u.fd, reactor.Read, false, u.onReadable)
	return nil
}

// Broadcast implements the Transport interface.
func (u *UDPTransport) Broadcast(p Packet) error {
	if u.closed {
		return ErrTransportClosed
	}

	to := &unix.SockaddrInet4{Port: u.port, Addr: u.addrs.Broadcast.As4()}
	data := Encode(p)

	for {
		err := unix.Sendto(u.fd, data, 0, to)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("broadcast %s: %w", p.Signature(), err)
		}
		return nil
	}
}

// LocalAddr implements the Transport interface.
func (u *UDPTransport) LocalAddr() netip.Addr {
	return u.addrs.Local
}

// Port returns the bound UDP port.
func (u *UDPTransport) Port() int {
	return u.port
}

// BroadcastAddr returns the address datagrams are sent to.
func (u *UDPTransport) BroadcastAddr() netip.Addr {
	return u.addrs.Broadcast
}

// Close implements the Transport interface.
func (u *UDPTransport) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.reactor.Remove(u.fd, reactor.Read)
	return unix.Close(u.fd)
}

// Receive reads one pending datagram. The size is peeked first, so oversized
// datagrams are drained without growing the receive buffer. The returned
// slice is reused by the next call.
func (u *UDPTransport) Receive() (netip.Addr, []byte, error) {
	size, err := u.pendingSize()
	if err != nil {
		return netip.Addr{}, nil, err
	}

	if size < MinSize || size > MaxSize {
		var scratch [1]byte
		_, _, err := u.recvfrom(scratch[:])
		if err != nil {
			return netip.Addr{}, nil, err
		}
		return netip.Addr{}, nil, fmt.Errorf("%w: %d bytes", ErrDiscarded, size)
	}

	buf := u.buf.Reserve(size)
	n, from, err := u.recvfrom(buf)
	if err != nil {
		return netip.Addr{}, nil, err
	}

	return from, buf[:n], nil
}

func (u *UDPTransport) pendingSize() (int, error) {
	for {
		n, err := unix.IoctlGetInt(u.fd, unix.SIOCINQ)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("SIOCINQ: %w", err)
		}
		return n, nil
	}
}

func (u *UDPTransport) recvfrom(p []byte) (int, netip.Addr, error) {
	for {
		n, sa, err := unix.Recvfrom(u.fd, p, 0)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, netip.Addr{}, ErrWouldBlock
		case err != nil:
			return 0, netip.Addr{}, fmt.Errorf("recvfrom: %w", err)
		}

		var from netip.Addr
		if sa4, ok := sa.(*unix.SockaddrInet4); ok {
			from = netip.AddrFrom4(sa4.Addr)
		}
		return n, from, nil
	}
}

func (u *UDPTransport) onReadable(int, reactor.Op) {
	from, data, err := u.Receive()
	switch {
	case errors.Is(err, ErrWouldBlock):
		return
	case errors.Is(err, ErrDiscarded):
		telemetry.PacketsDropped.WithLabelValues(telemetry.DropSize).Inc()
		u.logger.WithError(err).Warn("Dropped datagram")
		return
	case err != nil:
		u.logger.WithError(err).Error("Receive")
		return
	}

	if u.handler != nil {
		u.handler(from, data)
	}

	// data is dead once the handler returns.
	u.buf.Release()
}
