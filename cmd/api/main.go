package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"lab-report-access/internal/api"
	"lab-report-access/internal/config"
	"lab-report-access/internal/logging"
	"lab-report-access/internal/reportapi"
	"lab-report-access/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "json")
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	backend, mem, err := storage.NewBackend(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init blob backend")
	}

	// Callers authenticate per request; the gateway holds no credential of its own.
	reports := reportapi.NewHTTPClient(cfg.ReportAPIBaseURL, nil,
		reportapi.WithTimeout(cfg.ReportHTTPTimeout),
		reportapi.WithMaxBytes(cfg.ReportMaxBytes),
		reportapi.WithLogger(logger),
	)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("temporal unavailable, report delivery disabled")
		temporalClient = nil
	} else {
		defer temporalClient.Close()
	}

	var blobs api.BlobSource
	if mem != nil {
		blobs = mem
	}
	h := api.NewHandler(cfg, reports, backend, blobs, temporalClient, logger)
	router := api.NewRouter(h)

	srv := newServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("blob_backend", cfg.BlobBackend).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
