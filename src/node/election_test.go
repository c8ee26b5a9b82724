package node

import (
	"testing"

	"github.com/mosaicnetworks/sensornet/src/net"
	"github.com/mosaicnetworks/sensornet/src/node/state"
)

// pollingNode returns a node that has just broadcast vote s after its
// master-gone timer expired.
func pollingNode(t *testing.T, network *net.InmemNetwork, s uint32, more ...uint32) *testNode {
	a := newTestNode(t, network, "10.0.0.1", append([]uint32{s}, more...)...)
	a.masterGone.fire(t)
	flush(t, network)

	a.checkRole(t, state.Polling)
	if a.voteSent != s {
		t.Fatalf("vote_sent = %d, want %d", a.voteSent, s)
	}
	return a
}

func TestMasterGoneStartsElection(t *testing.T) {
	network := net.NewInmemNetwork()
	obs := newObserver(t, network)
	a := pollingNode(t, network, 500)

	heard := obs.take()
	if len(heard) != 1 {
		t.Fatalf("expected one Vote on the wire, heard %d packets", len(heard))
	}
	if v, ok := heard[0].packet.(net.Vote); !ok || v.Value != 500 {
		t.Fatalf("heard %#v", heard[0].packet)
	}
	if a.poll.d != DefaultPollTimeout {
		t.Fatalf("poll timer armed for %v", a.poll.d)
	}
}

func TestVoteWhilePolling(t *testing.T) {
	const s = 1000

	for _, c := range []struct {
		name     string
		v1, v2   uint32
		want     state.State
		wantSent uint32
		reroll   []uint32
	}{
		{name: "stronger concedes", v1: 10, v2: s + 1, want: state.WaitingMaster},
		{name: "weaker ignored", v1: 10, v2: s - 1, want: state.Polling, wantSent: s},
		{name: "tie re-rolls", v1: 10, v2: s, want: state.Polling, wantSent: 7000, reroll: []uint32{7000}},
	} {
		t.Run(c.name, func(t *testing.T) {
			network := net.NewInmemNetwork()
			a := pollingNode(t, network, s, c.reroll...)
			obs := newObserver(t, network)

			send(t, network, "10.0.0.2", net.Vote{Value: c.v1})
			a.checkRole(t, state.Polling)

			send(t, network, "10.0.0.3", net.Vote{Value: c.v2})
			a.checkRole(t, c.want)

			if a.voteSent != c.wantSent {
				t.Fatalf("vote_sent = %d, want %d", a.voteSent, c.wantSent)
			}

			rebroadcast := obs.count(net.SigVote) - 2
			if c.reroll != nil && rebroadcast != 1 {
				t.Fatalf("a tie should re-broadcast one fresh vote, got %d", rebroadcast)
			}
			if c.reroll == nil && rebroadcast != 0 {
				t.Fatalf("no vote should be re-broadcast, got %d", rebroadcast)
			}
		})
	}
}

func TestWeakDrawConcedesImmediately(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1", 300)
	obs := newObserver(t, network)

	send(t, network, "10.0.0.2", net.Vote{Value: 300})

	a.checkRole(t, state.WaitingMaster)
	if obs.count(net.SigVote) != 1 {
		t.Fatalf("a conceding node must not broadcast its vote")
	}
}

func TestIdleVoteJoinsElection(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1", 301)

	send(t, network, "10.0.0.2", net.Vote{Value: 300})

	a.checkRole(t, state.Polling)
	if a.maxVote != 300 || a.voteSent != 301 {
		t.Fatalf("max_vote = %d, vote_sent = %d", a.maxVote, a.voteSent)
	}
}

func TestPollingInterruptedByMaster(t *testing.T) {
	for _, p := range []net.Packet{net.ResetMaster{}, net.Request{}, net.InfoMessage{}} {
		t.Run(p.Signature().String(), func(t *testing.T) {
			network := net.NewInmemNetwork()
			a := pollingNode(t, network, 1000)

			send(t, network, "10.0.0.2", p)

			a.checkRole(t, state.Idle)
			if a.maxVote != 0 || a.voteSent != 0 {
				t.Fatalf("election round not reset")
			}
		})
	}
}

func TestPollTimeoutPromotesToMaster(t *testing.T) {
	network := net.NewInmemNetwork()
	a := pollingNode(t, network, 1000)

	a.poll.fire(t)

	a.checkRole(t, state.Master)
	if a.aggregate == nil {
		t.Fatalf("master has no aggregate")
	}
	if !a.mastering.periodic || a.mastering.d != DefaultMasteringTimeout {
		t.Fatalf("mastering timer should be periodic every %v, got %+v", DefaultMasteringTimeout, a.mastering)
	}
	if a.voteSent != 0 || a.maxVote != 0 {
		t.Fatalf("election round not reset on promotion")
	}
}

func TestWaitingMasterVote(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1", 5, 900)

	send(t, network, "10.0.0.2", net.Vote{Value: 10})
	a.checkRole(t, state.WaitingMaster)

	send(t, network, "10.0.0.3", net.Vote{Value: 800})
	a.checkRole(t, state.Polling)
	if a.voteSent != 900 || a.maxVote != 800 {
		t.Fatalf("max_vote = %d, vote_sent = %d", a.maxVote, a.voteSent)
	}
}

func TestWaitingMasterMasterGone(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1", 5, 900)

	send(t, network, "10.0.0.2", net.Vote{Value: 10})
	a.checkRole(t, state.WaitingMaster)

	a.masterGone.fire(t)
	a.checkRole(t, state.Polling)
	if a.maxVote != 0 || a.voteSent != 900 {
		t.Fatalf("a fresh election should not inherit a vote: max_vote = %d", a.maxVote)
	}
}

func TestWaitingMasterSeesMaster(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1", 5)
	obs := newObserver(t, network)

	send(t, network, "10.0.0.2", net.Vote{Value: 10})
	send(t, network, "10.0.0.2", net.Request{})

	a.checkRole(t, state.Idle)
	if obs.count(net.SigResponse) != 1 {
		t.Fatalf("the Request should be answered after going Idle")
	}
}

// Two nodes time out on the same master; the larger vote wins.
func TestElectionBetweenTwoNodes(t *testing.T) {
	for _, c := range []struct {
		name   string
		va, vb uint32
	}{
		{"b wins", 100, 200},
		{"a wins", 200, 100},
	} {
		t.Run(c.name, func(t *testing.T) {
			network := net.NewInmemNetwork()
			a := newTestNode(t, network, "10.0.0.1", c.va)
			b := newTestNode(t, network, "10.0.0.2", c.vb)

			a.masterGone.fire(t)
			b.masterGone.fire(t)
			a.checkRole(t, state.Polling)
			b.checkRole(t, state.Polling)

			flush(t, network)

			winner, loser := a, b
			if c.vb > c.va {
				winner, loser = b, a
			}

			loser.checkRole(t, state.WaitingMaster)
			winner.checkRole(t, state.Polling)

			winner.poll.fire(t)
			winner.checkRole(t, state.Master)
			loser.checkRole(t, state.WaitingMaster)

			// First request cycle: the loser answers and hears the averages.
			winner.sensor.temperature = 10
			loser.sensor.temperature = 30
			winner.mastering.fire(t)
			flush(t, network)

			loser.checkRole(t, state.Idle)
			winner.checkRole(t, state.Master)

			if loser.lastInfo == nil || loser.lastInfo.AvgTemperature != 20 {
				t.Fatalf("loser should have memorized the average 20, got %+v", loser.lastInfo)
			}
			if winner.aggregate.peers.Len() != 2 {
				t.Fatalf("master knows %d peers, want 2", winner.aggregate.peers.Len())
			}
		})
	}
}
