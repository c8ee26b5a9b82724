// Package config defines the configuration for a sensornet node.
//
// Whether the node is started from Go code or from the command line, every
// option ends up in the Config object defined here. The command line reads
// flags first and then, if present, a configuration file named sensornet
// (toml, yaml or json) in Config.DataDir:
//
//  sensornet.toml // optional, overrides flags
package config
