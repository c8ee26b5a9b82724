//go:build linux

package sensornet

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/mosaicnetworks/sensornet/src/config"
	"github.com/mosaicnetworks/sensornet/src/net"
	"github.com/mosaicnetworks/sensornet/src/node"
	"github.com/mosaicnetworks/sensornet/src/reactor"
	"github.com/mosaicnetworks/sensornet/src/service"
	"github.com/mosaicnetworks/sensornet/src/timer"
)

// Sensornet wires a node to its reactor, transport, timers and stats
// service.
type Sensornet struct {
	Config    *config.Config
	Reactor   *reactor.Reactor
	Transport *net.UDPTransport
	Timers    []*timer.Timer
	Node      *node.Node
	Service   *service.Service
	Signals   *reactor.SignalBridge

	// Addrs, when set before Init, bypasses the interface lookup.
	Addrs *net.InterfaceAddrs

	// Sensor, when set before Init, replaces the random sensor.
	Sensor node.Sensor
}

// NewSensornet ...
func NewSensornet(config *config.Config) *Sensornet {
	engine := &Sensornet{
		Config: config,
	}

	return engine
}

func (s *Sensornet) initReactor() error {
	r, err := reactor.New(s.Config.Logger().WithField("component", "reactor"))
	if err != nil {
		return err
	}

	s.Reactor = r

	return nil
}

func (s *Sensornet) initTransport() error {
	if s.Addrs == nil {
		addrs, err := net.ResolveInterface(s.Config.Interface)
		if err != nil {
			return err
		}
		s.Addrs = &addrs
	}

	transport, err := net.NewUDPTransport(
		s.Reactor,
		*s.Addrs,
		s.Config.Port,
		s.Config.Logger().WithField("component", "transport"),
	)
	if err != nil {
		return err
	}

	s.Transport = transport

	s.Config.Logger().WithFields(map[string]interface{}{
		"interface": s.Addrs.Name,
		"local":     s.Addrs.Local,
		"broadcast": s.Addrs.Broadcast,
		"port":      transport.Port(),
	}).Debug("Transport ready")

	return nil
}

func (s *Sensornet) initTimers() (node.Timers, error) {
	logger := s.Config.Logger().WithField("component", "timer")

	for _, name := range []string{"master-gone", "poll", "mastering"} {
		t, err := timer.New(s.Reactor, logger.WithField("timer", name))
		if err != nil {
			return node.Timers{}, err
		}
		s.Timers = append(s.Timers, t)
	}

	return node.Timers{
		MasterGone: s.Timers[0],
		Poll:       s.Timers[1],
		Mastering:  s.Timers[2],
	}, nil
}

func (s *Sensornet) initNode() error {
	timers, err := s.initTimers()
	if err != nil {
		return err
	}

	if s.Sensor == nil {
		s.Sensor = node.NewRandomSensor(time.Now().UnixNano())
	}

	s.Node = node.NewNode(
		s.Config.NodeConfig(),
		s.Transport,
		timers,
		s.Sensor,
	)

	if err := s.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %w", err)
	}

	return nil
}

func (s *Sensornet) initService() error {
	if !s.Config.NoService && s.Config.ServiceAddr != "" {
		s.Service = service.NewService(
			s.Config.ServiceAddr,
			s.Node,
			s.Config.Logger().WithField("component", "service"),
		)
	}
	return nil
}

func (s *Sensornet) initSignals() error {
	b, err := reactor.NewSignalBridge(
		s.Reactor,
		reactor.StopOnSignal(s.Reactor),
		os.Interrupt,
		syscall.SIGTERM,
	)
	if err != nil {
		return err
	}

	s.Signals = b

	return nil
}

// Init builds every component. On error, whatever was already built is
// released.
func (s *Sensornet) Init() error {
	for _, step := range []func() error{
		s.initReactor,
		s.initTransport,
		s.initNode,
		s.initService,
		s.initSignals,
	} {
		if err := step(); err != nil {
			s.Shutdown()
			return err
		}
	}

	return nil
}

// Run serves the stats API in the background and runs the reactor until a
// signal or a fatal error stops it. Everything is shut down before Run
// returns.
func (s *Sensornet) Run() error {
	if s.Service != nil {
		go s.Service.Serve()
	}

	err := s.Reactor.Run()

	s.Shutdown()

	return err
}

// Shutdown releases every component in reverse order of creation. It is safe
// to call on a partially initialized engine.
func (s *Sensornet) Shutdown() {
	logger := s.Config.Logger()

	if s.Signals != nil {
		if err := s.Signals.Close(); err != nil {
			logger.WithError(err).Error("Closing signal bridge")
		}
		s.Signals = nil
	}

	if s.Service != nil {
		if err := s.Service.Close(); err != nil {
			logger.WithError(err).Error("Closing service")
		}
		s.Service = nil
	}

	if s.Node != nil {
		// Closes the transport too.
		s.Node.Shutdown()
	} else if s.Transport != nil {
		if err := s.Transport.Close(); err != nil {
			logger.WithError(err).Error("Closing transport")
		}
	}

	for _, t := range s.Timers {
		if err := t.Close(); err != nil {
			logger.WithError(err).Error("Closing timer")
		}
	}
	s.Timers = nil

	if s.Reactor != nil {
		if err := s.Reactor.Close(); err != nil {
			logger.WithError(err).Error("Closing reactor")
		}
		s.Reactor = nil
	}
}
