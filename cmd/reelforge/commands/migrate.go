package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/store/session"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply pending session database migrations and report the resulting
schema version.

The start command also migrates on boot; this command exists for
running migrations ahead of a deploy.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	// Opening the store applies migrations.
	store, err := session.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer store.Close()

	switch cfg.Database.Type {
	case session.DatabaseTypePostgres:
		version, dirty, err := session.MigrationVersion(cfg.Database.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		if dirty {
			return fmt.Errorf("database is in a dirty migration state at version %d", version)
		}
		fmt.Printf("Database migrated to version %d\n", version)
	default:
		fmt.Println("SQLite schema is up to date")
	}

	return nil
}
