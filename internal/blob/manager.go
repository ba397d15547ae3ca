package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lab-report-access/internal/domain"
	"lab-report-access/internal/platform"
)

const releaseTimeout = 10 * time.Second

type Backend interface {
	Put(ctx context.Context, key string, p domain.NormalizedPayload) (string, error)
	Remove(ctx context.Context, key string) error
}

type Capabilities struct {
	Tabs       platform.TabOpener
	Downloader platform.Downloader
	Printer    platform.PrintHost
}

type Timings struct {
	ViewRevokeDelay  time.Duration
	PrintGraceDelay  time.Duration
	PrintLoadTimeout time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ViewRevokeDelay:  time.Second,
		PrintGraceDelay:  time.Second,
		PrintLoadTimeout: 30 * time.Second,
	}
}

// Manager materializes normalized reports and owns revoke timing for each
// consumption mode. Every consumption call returns with its handle revoked.
type Manager struct {
	backend Backend
	caps    Capabilities
	timings Timings
	logger  zerolog.Logger
}

func NewManager(backend Backend, caps Capabilities, timings Timings, logger zerolog.Logger) *Manager {
	return &Manager{backend: backend, caps: caps, timings: timings, logger: logger}
}

func (m *Manager) Materialize(ctx context.Context, requestID string, p domain.NormalizedPayload) (*Handle, error) {
	if len(p.Bytes) == 0 {
		return nil, domain.NewReportError(domain.KindPayload, "", fmt.Errorf("cannot materialize an empty report"))
	}
	if p.Mime == "" {
		p.Mime = domain.PDFMime
	}

	key := path.Join(url.PathEscape(requestID), uuid.NewString()+".pdf")
	u, err := m.backend.Put(ctx, key, p)
	if err != nil {
		return nil, fmt.Errorf("materialize report: %w", err)
	}

	logger := m.logger.With().Str("request_id", requestID).Str("blob_key", key).Logger()
	h := &Handle{
		URL:       u,
		RequestID: requestID,
		payload:   p,
		release: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			return m.backend.Remove(ctx, key)
		},
		onError: func(err error) {
			logger.Warn().Err(err).Msg("revoke report blob failed")
		},
	}
	logger.Debug().Msg("report materialized")
	return h, nil
}

func (m *Manager) View(ctx context.Context, h *Handle) error {
	defer h.Revoke()
	if m.caps.Tabs == nil {
		return errors.New("no tab opener configured")
	}
	if err := m.caps.Tabs.OpenTab(ctx, h.URL); err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	sleep(ctx, m.timings.ViewRevokeDelay)
	return nil
}

func (m *Manager) Download(ctx context.Context, h *Handle, filename string) error {
	defer h.Revoke()
	if m.caps.Downloader == nil {
		return errors.New("no downloader configured")
	}
	p, err := h.Payload()
	if err != nil {
		return err
	}
	if err := m.caps.Downloader.Trigger(ctx, p.Bytes, filename, p.Mime); err != nil {
		return fmt.Errorf("download report: %w", err)
	}
	return nil
}

// Print falls back to View when no print window can be opened.
func (m *Manager) Print(ctx context.Context, h *Handle) error {
	if m.caps.Printer == nil {
		return m.View(ctx, h)
	}
	win, err := m.caps.Printer.OpenWindow(ctx, h.URL)
	if errors.Is(err, platform.ErrWindowBlocked) {
		m.logger.Info().Err(err).Str("request_id", h.RequestID).Msg("print window blocked, viewing instead")
		return m.View(ctx, h)
	}
	if err != nil {
		h.Revoke()
		return fmt.Errorf("open print window: %w", err)
	}
	defer func() {
		h.Revoke()
		if cerr := win.Close(); cerr != nil {
			m.logger.Warn().Err(cerr).Str("request_id", h.RequestID).Msg("close print window failed")
		}
	}()

	loadCtx := ctx
	if m.timings.PrintLoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, m.timings.PrintLoadTimeout)
		defer cancel()
	}
	select {
	case <-win.Loaded():
	case <-loadCtx.Done():
		return fmt.Errorf("print window did not load: %w", loadCtx.Err())
	}

	if err := win.Print(ctx); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	sleep(ctx, m.timings.PrintGraceDelay)
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
