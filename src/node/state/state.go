package state

import (
	"sync/atomic"
)

// State captures the protocol role of a node: Idle, Polling, Master,
// WaitingMaster, or Shutdown
type State uint32

const (
	// Idle is the state in which a node answers the master's requests and
	// watches for the master going silent.
	Idle State = iota

	// Polling is the state in which a node has broadcast a vote and waits to
	// see whether anybody beats it.
	Polling

	// Master is the state in which a node collects readings from the others
	// and broadcasts their averages.
	Master

	// WaitingMaster is the state in which a node has lost an election and
	// waits for the winner to show up.
	WaitingMaster

	// Shutdown is the state in which a node ignores the network and its
	// timers.
	Shutdown
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Polling:
		return "Polling"
	case Master:
		return "Master"
	case WaitingMaster:
		return "WaitingMaster"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods. Only the reactor goroutine
// sets the state, but it is read from others, such as the stats service.
type Manager struct {
	state State
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
