//go:build linux

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const maxEvents = 32

var opEvents = [opCount]uint32{
	Read:  unix.EPOLLIN,
	Write: unix.EPOLLOUT,
}

// Reactor is a single-threaded readiness loop over epoll. All methods except
// Close must be called from the goroutine that runs the loop, either before
// Run or from inside a Handler.
type Reactor struct {
	epfd   int
	wakefd int

	jobs   *jobTable
	events []unix.EpollEvent

	allowNew bool
	running  bool
	draining bool

	logger *logrus.Entry
}

// New creates a Reactor with an empty job table.
func New(logger *logrus.Entry) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK|unix.EFD_SEMAPHORE)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl wake: %w", err)
	}

	return &Reactor{
		epfd:     epfd,
		wakefd:   wakefd,
		jobs:     newJobTable(),
		events:   make([]unix.EpollEvent, maxEvents),
		allowNew: true,
		logger:   logger,
	}, nil
}

// Post registers h to run when fd becomes ready for op. A one-shot job is
// removed before it runs; a persistent one stays until Remove. Posting onto
// an occupied (fd, op) slot, or after Stop, is ignored and reports false.
func (r *Reactor) Post(fd int, op Op, oneshot bool, h Handler) bool {
	if !r.allowNew || h == nil {
		return false
	}
	if !r.jobs.post(fd, op, oneshot, h) {
		return false
	}
	if r.running {
		r.wake()
	}
	return true
}

// Remove cancels the (fd, op) job if any. A removed job never fires, even if
// its descriptor is already reported ready in the batch being dispatched.
func (r *Reactor) Remove(fd int, op Op) {
	if r.jobs.remove(fd, op) && r.running {
		r.wake()
	}
}

// Pending returns the number of registered jobs.
func (r *Reactor) Pending() int {
	return r.jobs.pending()
}

// Running reports whether Run is in progress and has not been told to stop.
func (r *Reactor) Running() bool {
	return r.running
}

// Stop makes Run return. With waitPending false all jobs are dropped and Run
// returns as soon as the current Handler does. With waitPending true new
// posts are refused, and Run returns after one last non-blocking sweep of
// whatever is ready, or earlier if no job is left.
func (r *Reactor) Stop(waitPending bool) {
	r.allowNew = false

	if !waitPending {
		r.running = false
		r.jobs.clear()
		return
	}

	r.draining = true
	r.wake()
}

// Run dispatches ready jobs until Stop. It returns an error only if waiting
// on epoll fails for a reason other than an interrupted system call.
func (r *Reactor) Run() error {
	if !r.allowNew && !r.draining {
		return nil
	}

	r.sync()
	r.running = true

	sweeps := 0
	for r.running {
		timeout := -1
		if r.draining {
			if r.jobs.pending() == 0 || sweeps > 0 {
				break
			}
			timeout = 0
			sweeps++
		}

		n, err := unix.EpollWait(r.epfd, r.events, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			r.running = false
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n && r.running; i++ {
			ev := r.events[i]
			fd := int(ev.Fd)

			if fd == r.wakefd {
				r.drainWake()
				r.sync()
				continue
			}

			r.dispatch(fd, ev.Events)
		}
	}

	r.running = false

	return nil
}

// Close releases the epoll and wake descriptors. Descriptors registered by
// callers are theirs to close.
func (r *Reactor) Close() error {
	werr := unix.Close(r.wakefd)
	eerr := unix.Close(r.epfd)
	if werr != nil {
		return werr
	}
	return eerr
}

func (r *Reactor) dispatch(fd int, ready uint32) {
	failed := ready&(unix.EPOLLERR|unix.EPOLLHUP) != 0

	for op := Read; op < opCount; op++ {
		if ready&opEvents[op] == 0 && !failed {
			continue
		}

		e := r.jobs.lookup(fd)
		if e == nil {
			// Nothing left for this descriptor: the kernel is behind.
			r.forget(fd)
			return
		}

		j := e.jobs[op]
		if j == nil {
			r.resync(e)
			continue
		}

		if j.oneshot {
			e.jobs[op] = nil
			r.resync(e)
		}

		j.handler(fd, op)

		if !r.running {
			return
		}
	}
}

// sync brings the kernel interest set in line with the job table.
func (r *Reactor) sync() {
	for _, e := range r.jobs.entries() {
		r.resync(e)
	}
}

func (r *Reactor) resync(e *entry) {
	if e.empty() {
		r.jobs.drop(e.fd)
		r.forget(e.fd)
		return
	}

	var mask uint32
	for op, j := range e.jobs {
		if j != nil {
			mask |= opEvents[op]
		}
	}

	ev := unix.EpollEvent{Events: mask, Fd: int32(e.fd)}
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, e.fd, &ev)
	if errors.Is(err, unix.ENOENT) {
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, e.fd, &ev)
	}
	if err != nil {
		r.logger.WithError(err).WithField("fd", e.fd).Error("epoll_ctl")
	}
}

// forget withdraws fd from epoll. Closed descriptors are already gone, so
// errors are expected and ignored.
func (r *Reactor) forget(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (r *Reactor) wake() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(r.wakefd, buf[:]); err != nil {
		r.logger.WithError(err).Error("wake reactor")
	}
}

func (r *Reactor) drainWake() {
	var buf [8]byte
	_, err := unix.Read(r.wakefd, buf[:])
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		r.logger.WithError(err).Error("drain wake")
	}
}
