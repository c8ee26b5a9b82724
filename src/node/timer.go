package node

import "time"

// Timer is what the state machine needs from a timer. Arming an armed Timer
// supersedes the previous setting, and a cancelled Timer must never run its
// job afterwards.
type Timer interface {
	SetDeadline(d time.Duration, job func()) error
	SetPeriodic(interval time.Duration, job func()) error
	Cancel()
	Armed() bool
}

// Timers are the three protocol timers. At most one of them is armed at a
// time, and which one depends on the role.
type Timers struct {
	// MasterGone runs while Idle or WaitingMaster.
	MasterGone Timer
	// Poll runs while Polling.
	Poll Timer
	// Mastering runs while Master.
	Mastering Timer
}

func (t Timers) cancelAll() {
	t.MasterGone.Cancel()
	t.Poll.Cancel()
	t.Mastering.Cancel()
}
