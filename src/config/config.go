package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/sensornet/src/common"
	"github.com/mosaicnetworks/sensornet/src/node"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultPort              = 12345
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultNoService         = false
	DefaultMasterGoneTimeout = node.DefaultMasterGoneTimeout
	DefaultPollTimeout       = node.DefaultPollTimeout
	DefaultMasteringTimeout  = node.DefaultMasteringTimeout
)

// Config contains all the configuration properties of a sensornet node.
type Config struct {
	// DataDir is the directory searched for a sensornet.toml, .yaml or .json
	// configuration file.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of every entry at Info level or above.
	LogFile string `mapstructure:"log-file"`

	// Interface is the name of the network interface to broadcast on. Its
	// first IPv4 address becomes the node's identity.
	Interface string `mapstructure:"interface"`

	// Port is the UDP port every node binds and broadcasts to.
	Port int `mapstructure:"port"`

	// NoService disables the HTTP stats service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP stats service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MasterGoneTimeout is how long a node tolerates silence from the master
	// before calling an election.
	MasterGoneTimeout time.Duration `mapstructure:"master-gone-timeout"`

	// PollTimeout is how long a candidate waits for a stronger vote before
	// declaring itself master.
	PollTimeout time.Duration `mapstructure:"poll-timeout"`

	// MasteringTimeout is the period of the master's request cycle.
	MasteringTimeout time.Duration `mapstructure:"mastering-timeout"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		Port:              DefaultPort,
		NoService:         DefaultNoService,
		ServiceAddr:       DefaultServiceAddr,
		MasterGoneTimeout: DefaultMasterGoneTimeout,
		PollTimeout:       DefaultPollTimeout,
		MasteringTimeout:  DefaultMasteringTimeout,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// NodeConfig extracts the protocol timings for the node.
func (c *Config) NodeConfig() *node.Config {
	return node.NewConfig(
		c.MasterGoneTimeout,
		c.PollTimeout,
		c.MasteringTimeout,
		c.Logger().WithField("component", "node"),
	)
}

// Logger returns a formatted logrus Entry, with prefix set to "sensornet".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "sensornet")
}

// SetLogger replaces the logger built from LogLevel. Hooks added to it, such
// as a file sink, apply to every component.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDataDir return the default directory name for the sensornet
// configuration file based on the underlying OS, attempting to respect
// conventions.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Sensornet")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Sensornet")
		} else {
			return filepath.Join(home, ".sensornet")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
