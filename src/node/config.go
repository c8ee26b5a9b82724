package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/sensornet/src/common"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMasterGoneTimeout is how long a node waits without hearing from
	// a master before it calls an election.
	DefaultMasterGoneTimeout = 10 * time.Second
	// DefaultPollTimeout is how long a candidate waits for a stronger vote.
	DefaultPollTimeout = time.Second
	// DefaultMasteringTimeout is the period of the master's request cycle.
	DefaultMasteringTimeout = 5 * time.Second
)

// Config holds the protocol timings of a Node.
type Config struct {
	MasterGoneTimeout time.Duration
	PollTimeout       time.Duration
	MasteringTimeout  time.Duration
	Logger            *logrus.Entry
}

// NewConfig ...
func NewConfig(masterGone time.Duration,
	poll time.Duration,
	mastering time.Duration,
	logger *logrus.Entry) *Config {

	return &Config{
		MasterGoneTimeout: masterGone,
		PollTimeout:       poll,
		MasteringTimeout:  mastering,
		Logger:            logger,
	}
}

// DefaultConfig returns the timings the protocol was designed with.
func DefaultConfig() *Config {
	l := logrus.New()
	l.Level = logrus.DebugLevel
	logger := l.WithField("component", "node")

	return &Config{
		MasterGoneTimeout: DefaultMasterGoneTimeout,
		PollTimeout:       DefaultPollTimeout,
		MasteringTimeout:  DefaultMasteringTimeout,
		Logger:            logger,
	}
}

// TestConfig is DefaultConfig logging through t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestEntry(t, "node")
	return config
}
