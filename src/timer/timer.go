//go:build linux

package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/mosaicnetworks/sensornet/src/reactor"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ErrReactorStopped is returned when arming a timer whose reactor no longer
// accepts jobs.
var ErrReactorStopped = errors.New("timer: reactor stopped")

// Class tells how a Timer was last armed.
type Class uint8

const (
	// None means the timer has not been armed, or its one-shot deadline has
	// passed.
	None Class = iota
	// Relative deadlines are measured from the moment of arming.
	Relative
	// Absolute deadlines are readings of the monotonic clock.
	Absolute
	// Periodic timers fire every interval until cancelled.
	Periodic
)

func (c Class) String() string {
	switch c {
	case None:
		return "None"
	case Relative:
		return "Relative"
	case Absolute:
		return "Absolute"
	case Periodic:
		return "Periodic"
	default:
		return "Unknown"
	}
}

// Timer is a timerfd on CLOCK_MONOTONIC, driven by a Reactor. While a Timer
// is armed there is exactly one Read job for its descriptor in the reactor,
// and cancelling removes that job, so a cancelled Timer never calls its job
// even if the kernel had already expired it.
type Timer struct {
	fd      int
	reactor *reactor.Reactor
	logger  *logrus.Entry

	class Class
	armed bool
	job   func()
}

// New allocates a disarmed Timer bound to r.
func New(r *reactor.Reactor, logger *logrus.Entry) (*Timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd_create: %w", err)
	}

	return &Timer{
		fd:      fd,
		reactor: r,
		logger:  logger,
	}, nil
}

// Now reads the monotonic clock the timers run on.
func Now() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, fmt.Errorf("clock_gettime: %w", err)
	}
	return time.Duration(ts.Nano()), nil
}

// SetDeadline arms the timer to call job once, d from now.
func (t *Timer) SetDeadline(d time.Duration, job func()) error {
	return t.arm(0, d, 0, Relative, job)
}

// SetAbsolute arms the timer to call job once, when the monotonic clock
// reaches at (see Now).
func (t *Timer) SetAbsolute(at time.Duration, job func()) error {
	return t.arm(unix.TFD_TIMER_ABSTIME, at, 0, Absolute, job)
}

// SetPeriodic arms the timer to call job every interval until Cancel.
// Expirations that pile up while the loop is busy are folded into one call.
func (t *Timer) SetPeriodic(interval time.Duration, job func()) error {
	return t.arm(0, interval, interval, Periodic, job)
}

// Cancel disarms the timer. It is safe to call on a disarmed timer. The kernel
// timer is left alone: without a reactor job its expirations go unread, and
// the next arm resets it.
func (t *Timer) Cancel() {
	t.reactor.Remove(t.fd, reactor.Read)
	t.disarm()
}

// Armed reports whether a call to the job is still to come.
func (t *Timer) Armed() bool {
	return t.armed
}

// Class returns how the timer is armed.
func (t *Timer) Class() Class {
	return t.class
}

// Close cancels the timer and releases its descriptor.
func (t *Timer) Close() error {
	t.Cancel()
	return unix.Close(t.fd)
}

func (t *Timer) arm(flags int, value, interval time.Duration, class Class, job func()) error {
	if job == nil {
		return errors.New("timer: nil job")
	}
	// A zero it_value disarms a timerfd.
	if value <= 0 {
		value = 1
	}

	spec := unix.ItimerSpec{
		Value:    unix.NsecToTimespec(int64(value)),
		Interval: unix.NsecToTimespec(int64(interval)),
	}
	if err := unix.TimerfdSettime(t.fd, flags, &spec, nil); err != nil {
		return fmt.Errorf("timerfd_settime: %w", err)
	}

	t.reactor.Remove(t.fd, reactor.Read)

	if !t.reactor.Post(t.fd, reactor.Read, class != Periodic, t.onExpire) {
		t.disarm()
		return ErrReactorStopped
	}

	t.class = class
	t.armed = true
	t.job = job

	return nil
}

func (t *Timer) disarm() {
	t.armed = false
	t.class = None
	t.job = nil
}

func (t *Timer) onExpire(fd int, _ reactor.Op) {
	var buf [8]byte
	if _, err := unix.Read(fd, buf[:]); err != nil {
		if errors.Is(err, unix.EAGAIN) {
			// Re-armed after the kernel reported the old expiry. The
			// one-shot job is already detached, so put it back.
			if t.class != Periodic && !t.reactor.Post(fd, reactor.Read, true, t.onExpire) {
				t.disarm()
			}
			return
		}
		t.logger.WithError(err).Error("timerfd read")
		return
	}

	job := t.job
	if t.class != Periodic {
		t.disarm()
	}

	if job != nil {
		job()
	}
}
