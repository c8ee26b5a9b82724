package node

import (
	"net/netip"
	"sort"
	"testing"
	"time"

	"github.com/mosaicnetworks/sensornet/src/net"
	"github.com/mosaicnetworks/sensornet/src/node/state"
)

// fakeTimer is a Timer that only fires when a test says so.
type fakeTimer struct {
	name     string
	armed    bool
	periodic bool
	d        time.Duration
	job      func()
	arms     int
}

func (f *fakeTimer) SetDeadline(d time.Duration, job func()) error {
	f.armed, f.periodic, f.d, f.job = true, false, d, job
	f.arms++
	return nil
}

func (f *fakeTimer) SetPeriodic(d time.Duration, job func()) error {
	f.armed, f.periodic, f.d, f.job = true, true, d, job
	f.arms++
	return nil
}

func (f *fakeTimer) Cancel() {
	f.armed = false
	f.job = nil
}

func (f *fakeTimer) Armed() bool {
	return f.armed
}

// fire runs the job the way the reactor would: a deadline is disarmed first.
func (f *fakeTimer) fire(t *testing.T) {
	t.Helper()
	if !f.armed {
		t.Fatalf("%s timer fired while disarmed", f.name)
	}
	job := f.job
	if !f.periodic {
		f.armed = false
		f.job = nil
	}
	job()
}

type fixedSensor struct {
	temperature  int8
	illumination uint8
}

func (s *fixedSensor) Sample() (int8, uint8) {
	return s.temperature, s.illumination
}

type testNode struct {
	*Node

	masterGone *fakeTimer
	poll       *fakeTimer
	mastering  *fakeTimer
	sensor     *fixedSensor

	votes []uint32
}

var testClock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestNode attaches a node to network. Its elections draw votes in order.
func newTestNode(t *testing.T, network *net.InmemNetwork, addr string, votes ...uint32) *testNode {
	trans := network.NewInmemTransport(netip.MustParseAddr(addr))

	tn := &testNode{
		masterGone: &fakeTimer{name: "master-gone"},
		poll:       &fakeTimer{name: "poll"},
		mastering:  &fakeTimer{name: "mastering"},
		sensor:     &fixedSensor{temperature: 20, illumination: 100},
		votes:      votes,
	}

	tn.Node = NewNode(TestConfig(t), trans, Timers{
		MasterGone: tn.masterGone,
		Poll:       tn.poll,
		Mastering:  tn.mastering,
	}, tn.sensor)

	tn.Node.rand = func() uint32 {
		if len(tn.votes) == 0 {
			t.Fatalf("%s drew more votes than scripted", addr)
		}
		v := tn.votes[0]
		tn.votes = tn.votes[1:]
		return v
	}
	tn.Node.now = func() time.Time { return testClock }

	if err := tn.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	return tn
}

// armed lists the names of the armed protocol timers.
func (tn *testNode) armed() []string {
	var res []string
	for _, f := range []*fakeTimer{tn.masterGone, tn.poll, tn.mastering} {
		if f.armed {
			res = append(res, f.name)
		}
	}
	sort.Strings(res)
	return res
}

// checkRole asserts the role and that exactly the timer that role needs is
// armed.
func (tn *testNode) checkRole(t *testing.T, want state.State) {
	t.Helper()

	if got := tn.Role(); got != want {
		t.Fatalf("%s: role = %s, want %s", tn.LocalAddr(), got, want)
	}

	var timer string
	switch want {
	case state.Idle, state.WaitingMaster:
		timer = "master-gone"
	case state.Polling:
		timer = "poll"
	case state.Master:
		timer = "mastering"
	}

	armed := tn.armed()
	if len(armed) != 1 || armed[0] != timer {
		t.Fatalf("%s in %s: armed timers %v, want [%s]", tn.LocalAddr(), want, armed, timer)
	}
}

type heard struct {
	from   netip.Addr
	packet net.Packet
}

// observer records every valid packet on the network.
type observer struct {
	packets []heard
}

func newObserver(t *testing.T, network *net.InmemNetwork) *observer {
	o := &observer{}
	trans := network.NewInmemTransport(netip.MustParseAddr("10.0.0.250"))
	err := trans.Listen(func(from netip.Addr, data []byte) {
		if p, err := net.Decode(data); err == nil {
			o.packets = append(o.packets, heard{from, p})
		}
	})
	if err != nil {
		t.Fatalf("observer Listen: %v", err)
	}
	return o
}

// take returns and forgets the packets heard so far.
func (o *observer) take() []heard {
	res := o.packets
	o.packets = nil
	return res
}

func (o *observer) count(sig net.Signature) int {
	n := 0
	for _, h := range o.packets {
		if h.packet.Signature() == sig {
			n++
		}
	}
	return n
}

func flush(t *testing.T, network *net.InmemNetwork) {
	t.Helper()
	if _, err := network.Flush(1000); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func send(t *testing.T, network *net.InmemNetwork, from string, p net.Packet) {
	t.Helper()
	network.Inject(netip.MustParseAddr(from), net.Encode(p))
	flush(t, network)
}

func TestInitEntersIdle(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1")

	a.checkRole(t, state.Idle)
	if a.masterGone.d != DefaultMasterGoneTimeout {
		t.Fatalf("master-gone armed for %v", a.masterGone.d)
	}

	stats := a.GetStats()
	if stats["state"] != "Idle" || stats["local_addr"] != "10.0.0.1" {
		t.Fatalf("unexpected stats %v", stats)
	}

	if a.logger.Data["component"] != "node" || a.logger.Data["local"] != "10.0.0.1" {
		t.Fatalf("node logger lost its fields: %v", a.logger.Data)
	}
}

func TestIdleAnswersRequest(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1")
	obs := newObserver(t, network)
	a.sensor.temperature, a.sensor.illumination = -3, 42

	arms := a.masterGone.arms
	send(t, network, "10.0.0.9", net.Request{})

	a.checkRole(t, state.Idle)
	if a.masterGone.arms != arms+1 {
		t.Fatalf("Request should re-arm the master-gone timer")
	}

	heard := obs.take()
	if len(heard) != 2 {
		t.Fatalf("expected the Request and one Response, heard %d packets", len(heard))
	}
	r, ok := heard[1].packet.(net.Response)
	if !ok || heard[1].from != a.LocalAddr() {
		t.Fatalf("second packet should be our Response, got %#v from %v", heard[1].packet, heard[1].from)
	}
	if r.Temperature != -3 || r.Illumination != 42 {
		t.Fatalf("Response carries %+v", r)
	}
}

func TestIdleMemorizesInfoMessage(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1")

	m := net.InfoMessage{AvgTemperature: 21, Timestamp: 1700000000, Brightness: 12}
	m.SetText("21")
	arms := a.masterGone.arms
	send(t, network, "10.0.0.9", m)

	a.checkRole(t, state.Idle)
	if a.masterGone.arms != arms+1 {
		t.Fatalf("InfoMessage should re-arm the master-gone timer")
	}
	if a.lastInfo == nil || *a.lastInfo != m {
		t.Fatalf("last InfoMessage not remembered: %+v", a.lastInfo)
	}

	stats := a.GetStats()
	if stats["last_info_text"] != "21" || stats["last_info_from"] != "10.0.0.9" {
		t.Fatalf("stats do not show the InfoMessage: %v", stats)
	}
}

func TestOwnDatagramsAreIgnored(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1")

	send(t, network, "10.0.0.1", net.Vote{Value: 99})

	a.checkRole(t, state.Idle)
	if a.received != 0 {
		t.Fatalf("own datagram reached the state machine")
	}
}

func TestMalformedDatagramIsDropped(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1", 1000)
	obs := newObserver(t, network)

	for _, data := range [][]byte{
		{byte(net.SigResponse)},
		{byte(net.SigResponse), 1},
		{byte(net.SigVote), 1, 2},
		{7, 0, 0},
		make([]byte, net.MaxSize),
	} {
		network.Inject(netip.MustParseAddr("10.0.0.9"), data)
	}
	flush(t, network)

	a.checkRole(t, state.Idle)
	if a.dropped != 5 || a.received != 0 {
		t.Fatalf("dropped = %d, received = %d; want 5, 0", a.dropped, a.received)
	}
	if len(obs.take()) != 0 {
		t.Fatalf("nothing valid should have been broadcast")
	}
}

func TestShutdownIgnoresEverything(t *testing.T) {
	network := net.NewInmemNetwork()
	a := newTestNode(t, network, "10.0.0.1")

	a.Shutdown()
	a.Shutdown()

	if a.Role() != state.Shutdown {
		t.Fatalf("role = %s after Shutdown", a.Role())
	}
	if len(a.armed()) != 0 {
		t.Fatalf("timers still armed after Shutdown: %v", a.armed())
	}

	send(t, network, "10.0.0.9", net.Vote{Value: 1})
	if a.Role() != state.Shutdown || a.received != 0 {
		t.Fatalf("node reacted after Shutdown")
	}
}
