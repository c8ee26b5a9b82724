package node

import (
	"net/netip"

	"github.com/mosaicnetworks/sensornet/src/net"
	"github.com/mosaicnetworks/sensornet/src/node/state"
)

// act runs one packet through the handler of the current role.
func (n *Node) act(p net.Packet, from netip.Addr) {
	switch n.GetState() {
	case state.Idle:
		n.actIdle(p, from)
	case state.Polling:
		n.actPolling(p, from)
	case state.Master:
		n.actMaster(p, from)
	case state.WaitingMaster:
		n.actWaitingMaster(p, from)
	}
}

func (n *Node) actIdle(p net.Packet, from netip.Addr) {
	switch v := p.(type) {
	case net.Request:
		n.armMasterGone()
		n.sample()
		n.broadcast(net.Response{
			Temperature:  n.temperature,
			Illumination: n.illumination,
		})

	case net.InfoMessage:
		n.armMasterGone()
		n.memorize(v, from)

	case net.Vote:
		n.logVote("Vote received while idle", v)
		n.prepareToPoll(&v.Value)
		n.poll()
	}
}

func (n *Node) actPolling(p net.Packet, from netip.Addr) {
	switch v := p.(type) {
	case net.Vote:
		n.logVote("Vote received while polling", v)

		if v.Value > n.maxVote {
			n.maxVote = v.Value
		}

		switch {
		case v.Value > n.voteSent:
			n.finishPolling(state.WaitingMaster)
		case v.Value < n.voteSent:
			// weaker challenger
		default:
			// collision: draw again
			n.prepareToPoll(nil)
			n.poll()
		}

	case net.ResetMaster, net.Request, net.InfoMessage:
		n.becomeIdle()
		n.actIdle(p, from)
	}
}

func (n *Node) actMaster(p net.Packet, from netip.Addr) {
	switch v := p.(type) {
	case net.Response:
		n.aggregateResponse(from, v)

	case net.Vote:
		n.logVote("Vote received while mastering", v)
		n.vacate()
		n.broadcast(net.ResetMaster{})
		n.prepareToPoll(&v.Value)
		n.poll()

	case net.Request, net.InfoMessage, net.ResetMaster:
		n.vacate()
		n.becomeIdle()
		n.actIdle(p, from)
	}
}

func (n *Node) actWaitingMaster(p net.Packet, from netip.Addr) {
	switch v := p.(type) {
	case net.Vote:
		n.logVote("Vote received while waiting for master", v)
		n.timers.MasterGone.Cancel()
		n.prepareToPoll(&v.Value)
		n.poll()

	case net.ResetMaster, net.Request, net.InfoMessage:
		n.becomeIdle()
		n.actIdle(p, from)
	}
}
