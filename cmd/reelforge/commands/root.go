// Package commands implements the reelforge CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configcmd "github.com/reelforge/reelforge/cmd/reelforge/commands/config"
)

// Build information, set by main from -ldflags values.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "reelforge",
	Short: "Resumable upload service for large media files",
	Long: `ReelForge accepts resumable chunked uploads over HTTP, assembles
them in an S3-compatible object store, and enqueues finished uploads
for transcoding.

Run 'reelforge init' to create a configuration file, then
'reelforge start' to launch the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reelforge %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (default: $XDG_CONFIG_HOME/reelforge/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configcmd.NewConfigCmd(GetConfigFile))
}

// Execute runs the root command. Exits with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path from the --config flag.
// Empty means the default location.
func GetConfigFile() string {
	return configFile
}
