package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"lab-report-access/internal/blob"
	"lab-report-access/internal/config"
	"lab-report-access/internal/logging"
	"lab-report-access/internal/platform"
	"lab-report-access/internal/report"
	"lab-report-access/internal/reportapi"
	"lab-report-access/internal/storage"
	appTemporal "lab-report-access/internal/temporal"
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

	activities, err := newActivities(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build activities")
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect temporal")
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.ReportDeliveryWorkflow, workflow.RegisterOptions{Name: appTemporal.ReportDeliveryWorkflowName})
	w.RegisterActivity(activities.EvaluateGateActivity)
	w.RegisterActivity(activities.DeliverReportActivity)

	logger.Info().Str("task_queue", cfg.TemporalTaskQueue).Str("download_dir", cfg.DownloadDir).Msg("worker running")
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
}

// newActivities wires the report controller behind the delivery activities.
// Delivered reports land in the configured download directory.
func newActivities(cfg config.Config, logger zerolog.Logger) (*appTemporal.Activities, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}
	reports := reportapi.NewHTTPClient(cfg.ReportAPIBaseURL, creds,
		reportapi.WithTimeout(cfg.ReportHTTPTimeout),
		reportapi.WithMaxBytes(cfg.ReportMaxBytes),
		reportapi.WithLogger(logger),
	)

	backend, _, err := storage.NewBackend(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init blob backend: %w", err)
	}
	manager := blob.NewManager(backend, blob.Capabilities{
		Downloader: platform.DirDownloader{Dir: cfg.DownloadDir},
	}, blob.Timings{
		ViewRevokeDelay:  cfg.ViewRevokeDelay,
		PrintGraceDelay:  cfg.PrintGraceDelay,
		PrintLoadTimeout: cfg.PrintLoadTimeout,
	}, logger)
	controller := report.NewController(reports, reports, manager,
		report.WithArtifactKind(cfg.ReportArtifactKind),
		report.WithLogger(logger),
	)

	return &appTemporal.Activities{
		Availability: reports,
		Reports:      controller,
	}, nil
}
