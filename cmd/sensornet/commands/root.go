package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for sensornet
var RootCmd = &cobra.Command{
	Use:              "sensornet",
	Short:            "self-organizing sensor network node",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(VersionCmd)
}
