//go:build linux

package commands

import (
	"github.com/mosaicnetworks/sensornet/src/config"
	"github.com/mosaicnetworks/sensornet/src/sensornet"
	"github.com/mosaicnetworks/sensornet/src/telemetry"
	"github.com/mosaicnetworks/sensornet/src/version"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

func init() {
	RootCmd.AddCommand(NewRunCmd())
}

//NewRunCmd returns the command that starts a sensornet node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run <interface>",
		Short:   "Run node on the given network interface",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfig,
		RunE:    runSensornet,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runSensornet(cmd *cobra.Command, args []string) error {
	telemetry.SetBuildInfo(version.Version, version.GitCommit)

	engine := sensornet.NewSensornet(&_config.Sensornet)

	if err := engine.Init(); err != nil {
		_config.Sensornet.Logger().Error("Cannot initialize engine: ", err)
		return err
	}

	if err := engine.Run(); err != nil {
		_config.Sensornet.Logger().Error("Reactor failed: ", err)
		return err
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Sensornet.DataDir, "Directory searched for a sensornet config file")
	cmd.Flags().String("log", _config.Sensornet.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Sensornet.LogFile, "Also write info and above to this file")

	// Network
	cmd.Flags().IntP("port", "p", _config.Sensornet.Port, "UDP port to bind and broadcast to")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Sensornet.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Sensornet.NoService, "Disable HTTP service")

	// Node configuration
	cmd.Flags().Duration("master-gone-timeout", _config.Sensornet.MasterGoneTimeout, "Silence tolerated from the master before an election")
	cmd.Flags().Duration("poll-timeout", _config.Sensornet.PollTimeout, "Time a candidate waits for a stronger vote")
	cmd.Flags().Duration("mastering-timeout", _config.Sensornet.MasteringTimeout, "Period of the master's request cycle")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Sensornet.Interface = args[0]

	_config.Sensornet.SetLogger(newLogger(&_config.Sensornet))

	_config.Sensornet.Logger().WithFields(logrus.Fields{
		"sensornet.DataDir":           _config.Sensornet.DataDir,
		"sensornet.Interface":         _config.Sensornet.Interface,
		"sensornet.Port":              _config.Sensornet.Port,
		"sensornet.ServiceAddr":       _config.Sensornet.ServiceAddr,
		"sensornet.NoService":         _config.Sensornet.NoService,
		"sensornet.LogLevel":          _config.Sensornet.LogLevel,
		"sensornet.LogFile":           _config.Sensornet.LogFile,
		"sensornet.MasterGoneTimeout": _config.Sensornet.MasterGoneTimeout,
		"sensornet.PollTimeout":       _config.Sensornet.PollTimeout,
		"sensornet.MasteringTimeout":  _config.Sensornet.MasteringTimeout,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/sensornet.toml (.json, .yaml also work)
	viper.SetConfigName("sensornet")
	viper.AddConfigPath(_config.Sensornet.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Sensornet.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Sensornet.Logger().Debugf("No config file found in: %s", _config.Sensornet.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// newLogger builds the process logger. With a log file configured, entries at
// Info level and above are also appended to it.
func newLogger(c *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(c.LogLevel)
	logger.Formatter = new(prefixed.TextFormatter)

	if c.LogFile == "" {
		return logger
	}

	pathMap := lfshook.PathMap{}
	for _, level := range []logrus.Level{
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	} {
		pathMap[level] = c.LogFile
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
