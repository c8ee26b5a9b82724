//go:build linux

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// SignalBridge delivers process signals on the reactor goroutine. The Go
// runtime owns signal disposition, so signals are received on a channel by a
// helper goroutine and forwarded through an eventfd that the reactor watches
// like any other descriptor.
type SignalBridge struct {
	fd      int
	reactor *Reactor
	handler func(os.Signal)

	incoming chan os.Signal
	pending  chan os.Signal
	done     chan struct{}
}

// NewSignalBridge starts forwarding sigs to handler through r. The handler
// runs on the reactor goroutine.
func NewSignalBridge(r *Reactor, handler func(os.Signal), sigs ...os.Signal) (*SignalBridge, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("signal eventfd: %w", err)
	}

	b := &SignalBridge{
		fd:       fd,
		reactor:  r,
		handler:  handler,
		incoming: make(chan os.Signal, 1),
		pending:  make(chan os.Signal, 8),
		done:     make(chan struct{}),
	}

	signal.Notify(b.incoming, sigs...)
	go b.forward()

	r.Post(fd, Read, false, b.onReady)

	return b, nil
}

// StopOnSignal returns a handler that stops r without waiting for pending
// jobs.
func StopOnSignal(r *Reactor) func(os.Signal) {
	return func(sig os.Signal) {
		r.logger.WithField("signal", sig).Info("Caught signal")
		r.Stop(false)
	}
}

func (b *SignalBridge) forward() {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)

	for {
		select {
		case sig := <-b.incoming:
			select {
			case b.pending <- sig:
			default:
				// The loop is behind; one delivery of a signal is enough.
			}
			_, _ = unix.Write(b.fd, one[:])
		case <-b.done:
			return
		}
	}
}

func (b *SignalBridge) onReady(fd int, _ Op) {
	var buf [8]byte
	if _, err := unix.Read(fd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		b.reactor.logger.WithError(err).Error("drain signal eventfd")
		return
	}

	for {
		select {
		case sig := <-b.pending:
			b.handler(sig)
		default:
			return
		}
	}
}

// Close stops signal delivery, withdraws the reactor job and releases the
// eventfd.
func (b *SignalBridge) Close() error {
	signal.Stop(b.incoming)
	close(b.done)
	b.reactor.Remove(b.fd, Read)
	return unix.Close(b.fd)
}
