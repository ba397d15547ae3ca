package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lab-report-access/internal/api"
	"lab-report-access/internal/blob"
	"lab-report-access/internal/config"
	"lab-report-access/internal/logging"
	"lab-report-access/internal/platform"
	"lab-report-access/internal/report"
	"lab-report-access/internal/reportapi"
	"lab-report-access/internal/storage"
)

type sessionOptions struct {
	serveBlobs  bool
	downloadDir string
}

// session holds what one reportctl invocation needs. With the memory backend
// and serveBlobs set, blob URLs are served from a loopback listener that lives
// as long as the session.
type session struct {
	reports    *reportapi.HTTPClient
	controller *report.Controller
	server     *http.Server
}

func newSession(opts sessionOptions) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, "console")

	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	s := &session{
		reports: reportapi.NewHTTPClient(cfg.ReportAPIBaseURL, creds,
			reportapi.WithTimeout(cfg.ReportHTTPTimeout),
			reportapi.WithMaxBytes(cfg.ReportMaxBytes),
			reportapi.WithLogger(logger),
		),
	}

	var backend blob.Backend
	if opts.serveBlobs && cfg.BlobBackend == config.BlobBackendMemory {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		mem := blob.NewMemoryStore("http://" + ln.Addr().String())
		r := chi.NewRouter()
		r.Mount("/blobs", api.NewBlobRouter(mem))
		s.server = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("blob server stopped")
			}
		}()
		backend = mem
	} else {
		backend, _, err = storage.NewBackend(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	downloadDir := opts.downloadDir
	if downloadDir == "" {
		downloadDir = cfg.DownloadDir
	}
	manager := blob.NewManager(backend, blob.Capabilities{
		Tabs:       platform.NewBrowserOpener(),
		Downloader: platform.DirDownloader{Dir: downloadDir},
		Printer:    platform.NewSpoolPrintHost(cfg.PrintCommand),
	}, blob.Timings{
		ViewRevokeDelay:  cfg.ViewRevokeDelay,
		PrintGraceDelay:  cfg.PrintGraceDelay,
		PrintLoadTimeout: cfg.PrintLoadTimeout,
	}, logger)
	s.controller = report.NewController(s.reports, s.reports, manager,
		report.WithArtifactKind(cfg.ReportArtifactKind),
		report.WithLogger(logger),
	)
	return s, nil
}

func (s *session) Close() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}
