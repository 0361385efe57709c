package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/internal/telemetry"
	"github.com/reelforge/reelforge/pkg/api"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/jobs"
	"github.com/reelforge/reelforge/pkg/metrics"
	"github.com/reelforge/reelforge/pkg/store/object/s3"
	"github.com/reelforge/reelforge/pkg/store/session"
	"github.com/reelforge/reelforge/pkg/upload"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the upload server",
	Long: `Start the ReelForge upload server.

Connects to the session database and the object store, recovers any
pending transcode jobs, and serves the resumable upload API until
interrupted.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	logger.Info("starting reelforge",
		"version", Version,
		"commit", Commit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "reelforge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "reelforge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Warn("profiling shutdown error", logger.KeyError, err)
		}
	}()

	var uploadMetrics *metrics.UploadMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		uploadMetrics = metrics.NewUploadMetrics()
		logger.Info("metrics enabled", "path", "/metrics")
	}

	sessions, err := session.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("session store close error", logger.KeyError, err)
		}
	}()

	objects, err := s3.NewFromConfig(ctx, s3.Config{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		ForcePathStyle:  cfg.Storage.Endpoint != "",
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		KeyPrefix:       cfg.Storage.KeyPrefix,
	}, metrics.NewObjectStoreMetrics())
	if err != nil {
		return fmt.Errorf("failed to create object store client: %w", err)
	}

	queue, err := jobs.Open(cfg.Jobs.Path)
	if err != nil {
		return fmt.Errorf("failed to open job queue: %w", err)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job queue close error", logger.KeyError, err)
		}
	}()

	svc := upload.NewService(upload.Config{
		Bucket:           cfg.Storage.Bucket,
		MaxUploadBytes:   cfg.Upload.MaxUploadBytes.Int64(),
		AllowedMimeTypes: cfg.Upload.AllowedMimeTypes,
		SessionTTL:       cfg.Upload.SessionTTL,
	}, sessions, objects, jobs.NewDispatcher(queue), uploadMetrics)

	reaper := upload.NewReaper(cfg.Reaper, svc, queue, uploadMetrics)
	go reaper.Run(ctx)

	server, err := api.NewServer(cfg.API, svc)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		if err := <-serverDone; err != nil {
			return err
		}
	case err := <-serverDone:
		if err != nil {
			return err
		}
	}

	logger.Info("reelforge stopped")
	return nil
}
