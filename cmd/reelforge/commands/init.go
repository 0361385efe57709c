package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reelforge/reelforge/internal/cli/prompt"
	"github.com/reelforge/reelforge/pkg/config"
)

var (
	initForce bool
	initYes   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a ReelForge configuration file with sensible defaults and a
freshly generated JWT secret.

By default the file is written to $XDG_CONFIG_HOME/reelforge/config.yaml;
use --config to choose another path. Prompts for the object-store
settings unless --yes is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "accept defaults without prompting")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	cfg := config.GetDefaultConfig()

	secret, err := generateJWTSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.API.JWTSecret = secret

	if !initYes {
		if err := promptStorageSettings(cfg); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n\n", path)
	fmt.Println("A random JWT secret was generated. Clients must present tokens")
	fmt.Println("signed with this secret; keep the file private (it is written 0600).")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review the configuration, in particular the storage section")
	fmt.Println("  2. Run 'reelforge migrate' if using PostgreSQL")
	fmt.Println("  3. Run 'reelforge start' to launch the server")
	return nil
}

func promptStorageSettings(cfg *config.Config) error {
	bucket, err := prompt.Input("Object store bucket", cfg.Storage.Bucket)
	if err != nil {
		return err
	}
	cfg.Storage.Bucket = bucket

	endpoint, err := prompt.Input("S3 endpoint (empty for AWS)", cfg.Storage.Endpoint)
	if err != nil {
		return err
	}
	cfg.Storage.Endpoint = endpoint

	if endpoint != "" {
		accessKey, err := prompt.Input("Access key ID", cfg.Storage.AccessKeyID)
		if err != nil {
			return err
		}
		cfg.Storage.AccessKeyID = accessKey

		secretKey, err := prompt.Input("Secret access key", cfg.Storage.SecretAccessKey)
		if err != nil {
			return err
		}
		cfg.Storage.SecretAccessKey = secretKey
	}

	return nil
}

// generateJWTSecret returns a 64-character hex secret from a CSPRNG.
func generateJWTSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
