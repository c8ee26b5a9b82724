package node

import (
	"math/rand"
	"net/netip"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/sensornet/src/net"
	"github.com/mosaicnetworks/sensornet/src/node/state"
	"github.com/mosaicnetworks/sensornet/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Node defines a sensor network node
type Node struct {
	state.Manager

	conf   *Config
	logger *logrus.Entry

	trans  net.Transport
	timers Timers
	sensor Sensor

	rand func() uint32
	now  func() time.Time

	// Election round. maxVote is the strongest vote seen, voteSent the one
	// we broadcast, 0 if none.
	maxVote  uint32
	voteSent uint32

	// Last local sample.
	temperature  int8
	illumination uint8

	// Non-nil while Master.
	aggregate *aggregate

	lastInfo     *net.InfoMessage
	lastInfoFrom netip.Addr

	received uint64
	sent     uint64
	dropped  uint64
	start    time.Time

	stats atomic.Value
}

// NewNode is a factory method that returns a Node instance. The node does
// nothing until Init.
func NewNode(conf *Config,
	trans net.Transport,
	timers Timers,
	sensor Sensor,
) *Node {
	node := Node{
		conf:   conf,
		logger: conf.Logger.WithField("local", trans.LocalAddr().String()),
		trans:  trans,
		timers: timers,
		sensor: sensor,
		rand:   rand.Uint32,
		now:    time.Now,
	}

	node.stats.Store(map[string]string{})

	return &node
}

// Init starts listening and enters the Idle role, which arms the master-gone
// timer.
func (n *Node) Init() error {
	if err := n.trans.Listen(n.receive); err != nil {
		return err
	}

	n.start = n.now()
	n.becomeIdle()
	n.publishStats()

	return nil
}

// Shutdown cancels every timer and closes the transport. The node ignores
// any event delivered afterwards.
func (n *Node) Shutdown() {
	if n.GetState() == state.Shutdown {
		return
	}

	n.logger.Debug("Shutdown")

	n.SetState(state.Shutdown)
	n.timers.cancelAll()
	n.aggregate = nil

	if err := n.trans.Close(); err != nil {
		n.logger.WithError(err).Error("Closing transport")
	}

	n.publishStats()
}

// receive is the transport Handler. Own broadcasts and invalid datagrams are
// dropped here, before the state machine sees them.
func (n *Node) receive(from netip.Addr, data []byte) {
	if n.GetState() == state.Shutdown {
		return
	}

	if from == n.trans.LocalAddr() {
		telemetry.PacketsDropped.WithLabelValues(telemetry.DropOwn).Inc()
		return
	}

	p, err := net.Decode(data)
	if err != nil {
		n.dropped++
		telemetry.PacketsDropped.WithLabelValues(telemetry.DropInvalid).Inc()
		n.logger.WithError(err).WithField("from", from).Warn("Dropped datagram")
		n.publishStats()
		return
	}

	n.received++
	telemetry.PacketsReceived.WithLabelValues(p.Signature().String()).Inc()

	n.logger.WithFields(logrus.Fields{
		"role":      n.GetState().String(),
		"signature": p.Signature().String(),
		"from":      from,
	}).Debug("Acting")

	n.act(p, from)
	n.publishStats()
}

func (n *Node) broadcast(p net.Packet) {
	if err := n.trans.Broadcast(p); err != nil {
		n.logger.WithError(err).WithField("signature", p.Signature().String()).Error("Broadcast")
		return
	}

	n.sent++
	telemetry.PacketsSent.WithLabelValues(p.Signature().String()).Inc()
}

func (n *Node) sample() {
	n.temperature, n.illumination = n.sensor.Sample()

	n.logger.WithFields(logrus.Fields{
		"temperature":  n.temperature,
		"illumination": n.illumination,
	}).Debug("Sample")
}

func (n *Node) memorize(m net.InfoMessage, from netip.Addr) {
	n.lastInfo = &m
	n.lastInfoFrom = from

	telemetry.AverageTemperature.Set(float64(m.AvgTemperature))

	n.logger.WithFields(logrus.Fields{
		"text":        m.TextString(),
		"temperature": m.AvgTemperature,
		"brightness":  m.Brightness,
		"date":        time.Unix(int64(m.Timestamp), 0).UTC().Format(time.RFC3339),
		"from":        from,
	}).Info("Memorize")
}

// Role returns the current protocol role.
func (n *Node) Role() state.State {
	return n.GetState()
}

// LocalAddr returns the address the node broadcasts from.
func (n *Node) LocalAddr() netip.Addr {
	return n.trans.LocalAddr()
}

// GetStats returns a snapshot of the node's state. It is safe to call from
// any goroutine.
func (n *Node) GetStats() map[string]string {
	stats := n.stats.Load().(map[string]string)

	res := make(map[string]string, len(stats)+2)
	for k, v := range stats {
		res[k] = v
	}
	res["state"] = n.GetState().String()
	if !n.start.IsZero() {
		res["uptime"] = time.Since(n.start).Truncate(time.Second).String()
	}

	return res
}

// publishStats stores a fresh snapshot for GetStats. It runs on the reactor
// goroutine after every event.
func (n *Node) publishStats() {
	u32 := func(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
	u64 := func(v uint64) string { return strconv.FormatUint(v, 10) }

	s := map[string]string{
		"local_addr":       n.trans.LocalAddr().String(),
		"max_vote":         u32(n.maxVote),
		"vote_sent":        u32(n.voteSent),
		"temperature":      strconv.Itoa(int(n.temperature)),
		"illumination":     strconv.Itoa(int(n.illumination)),
		"packets_received": u64(n.received),
		"packets_sent":     u64(n.sent),
		"packets_dropped":  u64(n.dropped),
		"num_peers":        "0",
	}

	if n.aggregate != nil {
		s["num_peers"] = strconv.Itoa(n.aggregate.peers.Len())
		s["avg_temperature"] = strconv.Itoa(int(n.aggregate.avgTemperature))
		s["avg_illumination"] = strconv.Itoa(int(n.aggregate.avgIllumination))
	}

	if n.lastInfo != nil {
		s["last_info_text"] = n.lastInfo.TextString()
		s["last_info_temperature"] = strconv.Itoa(int(n.lastInfo.AvgTemperature))
		s["last_info_brightness"] = strconv.Itoa(int(n.lastInfo.Brightness))
		s["last_info_timestamp"] = u32(n.lastInfo.Timestamp)
		s["last_info_from"] = n.lastInfoFrom.String()
	}

	n.stats.Store(s)
}
