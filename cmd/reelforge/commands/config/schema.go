package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/reelforge/reelforge/pkg/config"
)

func newSchemaCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate the JSON schema for the configuration file",
		Long: `Generate a JSON schema describing the configuration file format.

The schema can be used by editors for completion and validation of
config.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reflector := &jsonschema.Reflector{
				AllowAdditionalProperties: false,
				DoNotReference:            true,
			}

			schema := reflector.Reflect(&config.Config{})
			schema.Version = "https://json-schema.org/draft/2020-12/schema"
			schema.Title = "ReelForge Configuration"
			schema.Description = "Configuration schema for the ReelForge upload server"

			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}

			if outputPath == "" {
				fmt.Println(string(data))
				return nil
			}

			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write schema file: %w", err)
			}
			fmt.Printf("Schema written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write schema to a file instead of stdout")

	return cmd
}
