package commands

import (
	"fmt"

	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/pkg/config"
)

// initLogger configures the global logger from the loaded configuration.
func initLogger(cfg *config.Config) error {
	err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
