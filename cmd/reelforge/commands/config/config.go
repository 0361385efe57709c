// Package config implements the 'reelforge config' subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// NewConfigCmd builds the config command group. getConfigFile resolves
// the --config persistent flag from the root command.
func NewConfigCmd(getConfigFile func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(newShowCmd(getConfigFile))
	cmd.AddCommand(newSchemaCmd())

	return cmd
}
