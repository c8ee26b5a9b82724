package node

import (
	"github.com/mosaicnetworks/sensornet/src/net"
	"github.com/mosaicnetworks/sensornet/src/node/state"
	"github.com/mosaicnetworks/sensornet/src/telemetry"
	"github.com/sirupsen/logrus"
)

func (n *Node) setRole(s state.State) {
	prev := n.GetState()
	n.SetState(s)

	if prev == s {
		return
	}

	telemetry.RoleTransitions.WithLabelValues(s.String()).Inc()

	entry := n.logger.WithFields(logrus.Fields{
		"from": prev.String(),
		"to":   s.String(),
	})
	if s == state.Master {
		entry.Info("Role")
	} else {
		entry.Debug("Role")
	}
}

// becomeIdle enters Idle from any role: the election round is forgotten, the
// poll and mastering timers are stopped, and the master-gone timer restarts.
func (n *Node) becomeIdle() {
	n.setRole(state.Idle)
	n.maxVote, n.voteSent = 0, 0

	n.timers.Poll.Cancel()
	n.timers.Mastering.Cancel()
	n.armMasterGone()
}

// prepareToPoll opens an election round, inheriting the vote that triggered
// it, if any.
func (n *Node) prepareToPoll(v *uint32) {
	n.setRole(state.Polling)

	n.maxVote = 0
	if v != nil {
		n.maxVote = *v
	}
	n.voteSent = 0

	n.timers.MasterGone.Cancel()
}

// poll draws a vote. A draw that does not beat the strongest vote seen
// concedes at once; otherwise it is broadcast and the poll timer decides.
func (n *Node) poll() {
	v := n.rand()
	telemetry.Elections.Inc()

	if v <= n.maxVote {
		n.logger.WithFields(logrus.Fields{
			"drawn":    v,
			"max_vote": n.maxVote,
		}).Debug("Conceding")
		n.finishPolling(state.WaitingMaster)
		return
	}

	n.voteSent = v
	n.broadcast(net.Vote{Value: v})

	if err := n.timers.Poll.SetDeadline(n.conf.PollTimeout, n.pollTimedOut); err != nil {
		n.logger.WithError(err).Error("Arming poll timer")
	}
}

// finishPolling closes the election round and moves to role.
func (n *Node) finishPolling(role state.State) {
	if n.GetState() == state.Polling {
		n.timers.Poll.Cancel()
	}

	n.setRole(role)
	n.maxVote, n.voteSent = 0, 0

	if role == state.WaitingMaster {
		n.armMasterGone()
	}
}

func (n *Node) armMasterGone() {
	if err := n.timers.MasterGone.SetDeadline(n.conf.MasterGoneTimeout, n.masterGoneTimedOut); err != nil {
		n.logger.WithError(err).Error("Arming master-gone timer")
	}
}

func (n *Node) masterGoneTimedOut() {
	switch n.GetState() {
	case state.Idle, state.WaitingMaster:
	default:
		return
	}

	n.logger.Info("Master gone")

	n.prepareToPoll(nil)
	n.poll()
	n.publishStats()
}

func (n *Node) pollTimedOut() {
	if n.GetState() != state.Polling {
		return
	}

	n.finishPolling(state.Master)
	n.becomeMaster()
	n.publishStats()
}

func (n *Node) logVote(msg string, v net.Vote) {
	n.logger.WithFields(logrus.Fields{
		"vote":      v.Value,
		"vote_sent": n.voteSent,
		"max_vote":  n.maxVote,
	}).Debug(msg)
}
