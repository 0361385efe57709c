package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reelforge/reelforge/pkg/config"
)

func newShowCmd(getConfigFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration after merging the config file,
environment variables, and defaults. Secrets are redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.MustLoad(getConfigFile())
			if err != nil {
				return err
			}

			redacted := *cfg
			if redacted.API.JWTSecret != "" {
				redacted.API.JWTSecret = "<redacted>"
			}
			if redacted.Storage.SecretAccessKey != "" {
				redacted.Storage.SecretAccessKey = "<redacted>"
			}

			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			fmt.Print(string(data))
			return nil
		},
	}
}
