package commands

import (
	"github.com/mosaicnetworks/sensornet/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Sensornet config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Sensornet: *config.NewDefaultConfig(),
	}
}
