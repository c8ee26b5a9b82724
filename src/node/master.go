package node

import (
	"net/netip"
	"strconv"
	"time"

	"github.com/mosaicnetworks/sensornet/src/net"
	"github.com/mosaicnetworks/sensornet/src/node/state"
	"github.com/mosaicnetworks/sensornet/src/peers"
	"github.com/mosaicnetworks/sensornet/src/telemetry"
	"github.com/sirupsen/logrus"
)

// aggregate is the master's view of the network: the latest reading of every
// peer and the averages last broadcast.
type aggregate struct {
	peers *peers.Index

	avgTemperature  int8
	avgIllumination uint8
}

func newAggregate() *aggregate {
	return &aggregate{peers: peers.NewIndex()}
}

// update records r as the latest reading of from and reports whether either
// average changed.
func (a *aggregate) update(from netip.Addr, r net.Response) bool {
	a.peers.Update(from, r.Temperature, r.Illumination)

	t, i := a.peers.Averages()
	changed := t != a.avgTemperature || i != a.avgIllumination
	a.avgTemperature, a.avgIllumination = t, i

	return changed
}

// brightness is derived from the average illumination, wrapping at 255.
func (a *aggregate) brightness() uint8 {
	return a.avgIllumination + 1
}

func (a *aggregate) infoMessage(now time.Time) net.InfoMessage {
	m := net.InfoMessage{
		AvgTemperature: a.avgTemperature,
		Timestamp:      uint32(now.Unix()),
		Brightness:     a.brightness(),
	}
	m.SetText(strconv.Itoa(int(a.avgTemperature)))
	return m
}

func (n *Node) becomeMaster() {
	n.aggregate = newAggregate()

	if err := n.timers.Mastering.SetPeriodic(n.conf.MasteringTimeout, n.masteringTick); err != nil {
		n.logger.WithError(err).Error("Arming mastering timer")
	}
}

// vacate tears down the master role. The caller picks the next role.
func (n *Node) vacate() {
	n.aggregate = nil
	n.timers.Mastering.Cancel()
	telemetry.Peers.Set(0)
}

// masteringTick asks everybody for readings and folds in the master's own,
// under the unspecified address.
func (n *Node) masteringTick() {
	if n.GetState() != state.Master {
		n.timers.Mastering.Cancel()
		return
	}

	n.broadcast(net.Request{})

	n.sample()
	n.aggregateResponse(netip.IPv4Unspecified(), net.Response{
		Temperature:  n.temperature,
		Illumination: n.illumination,
	})

	n.publishStats()
}

func (n *Node) aggregateResponse(from netip.Addr, r net.Response) {
	if !n.aggregate.update(from, r) {
		return
	}

	a := n.aggregate
	telemetry.Peers.Set(float64(a.peers.Len()))
	telemetry.AverageTemperature.Set(float64(a.avgTemperature))
	telemetry.AverageIllumination.Set(float64(a.avgIllumination))

	n.logger.WithFields(logrus.Fields{
		"temperature":  a.avgTemperature,
		"illumination": a.avgIllumination,
		"peers":        a.peers.Len(),
	}).Debug("Averages changed")

	n.broadcast(a.infoMessage(n.now()))
}
