package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

type CommandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// BrowserOpener opens URLs with the desktop's default handler.
type BrowserOpener struct {
	GOOS string
	Run  CommandRunner
}

func NewBrowserOpener() *BrowserOpener {
	return &BrowserOpener{GOOS: runtime.GOOS, Run: runCommand}
}

func (b *BrowserOpener) OpenTab(ctx context.Context, url string) error {
	name, args := openCommand(b.GOOS, url)
	return b.Run(ctx, name, args...)
}

func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// DirDownloader saves triggered downloads into Dir.
type DirDownloader struct {
	Dir string
}

func (d DirDownloader) Trigger(_ context.Context, data []byte, filename, _ string) error {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return fmt.Errorf("invalid download filename %q", filename)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close download: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(d.Dir, name))
}

// SpoolPrintHost prints through a local spooler command (lp by default). The
// "window" is a temp file holding the dereferenced report.
type SpoolPrintHost struct {
	Command    string
	HTTPClient *http.Client
	LookPath   func(string) (string, error)
	Run        CommandRunner
}

func NewSpoolPrintHost(command string) *SpoolPrintHost {
	if command == "" {
		command = "lp"
	}
	return &SpoolPrintHost{Command: command, HTTPClient: http.DefaultClient, LookPath: exec.LookPath, Run: runCommand}
}

func (s *SpoolPrintHost) OpenWindow(ctx context.Context, url string) (PrintWindow, error) {
	if _, err := s.LookPath(s.Command); err != nil {
		return nil, fmt.Errorf("%w: %s unavailable", ErrWindowBlocked, s.Command)
	}
	tmp, err := os.CreateTemp("", "report-print-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWindowBlocked, err)
	}

	loadCtx, cancel := context.WithCancel(ctx)
	w := &spoolWindow{host: s, path: tmp.Name(), loaded: make(chan struct{}), cancel: cancel}
	go w.load(loadCtx, url, tmp)
	return w, nil
}

type spoolWindow struct {
	host    *SpoolPrintHost
	path    string
	loaded  chan struct{}
	loadErr error
	cancel  context.CancelFunc
	once    sync.Once
}

func (w *spoolWindow) load(ctx context.Context, url string, dst *os.File) {
	defer close(w.loaded)
	defer dst.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		w.loadErr = err
		return
	}
	resp, err := w.host.HTTPClient.Do(req)
	if err != nil {
		w.loadErr = err
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		w.loadErr = fmt.Errorf("load report: status %d", resp.StatusCode)
		return
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		w.loadErr = err
	}
}

func (w *spoolWindow) Loaded() <-chan struct{} {
	return w.loaded
}

func (w *spoolWindow) Print(ctx context.Context) error {
	<-w.loaded
	if w.loadErr != nil {
		return w.loadErr
	}
	return w.host.Run(ctx, w.host.Command, w.path)
}

func (w *spoolWindow) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		<-w.loaded
		if rmErr := os.Remove(w.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = rmErr
		}
	})
	return err
}
