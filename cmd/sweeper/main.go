package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lab-report-access/internal/config"
	"lab-report-access/internal/logging"
	"lab-report-access/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "json")
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.BlobBackend != config.BlobBackendMinio {
		logger.Fatal().Str("blob_backend", cfg.BlobBackend).Msg("sweeper only runs against the minio blob backend")
	}

	store, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket, cfg.MinioPresignExpiry, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect minio")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("bucket", cfg.MinioBucket).Dur("max_age", cfg.SweepMaxAge).Dur("interval", cfg.SweepInterval).Msg("sweeper started")
	runSweeps(ctx, store, cfg.SweepInterval, cfg.SweepMaxAge, logger)
	logger.Info().Msg("sweeper stopped")
}

type sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// runSweeps sweeps once immediately, then every interval until ctx is done.
func runSweeps(ctx context.Context, s sweeper, interval, maxAge time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweepCtx, cancel := context.WithTimeout(ctx, interval)
		removed, err := s.Sweep(sweepCtx, maxAge)
		cancel()
		if err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Int("removed", removed).Msg("sweep failed")
		} else if removed > 0 {
			logger.Info().Int("removed", removed).Msg("sweep finished")
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
