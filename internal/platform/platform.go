// Package platform holds the host capabilities a report handle is consumed
// through: opening a tab, saving a file and printing.
package platform

import (
	"context"
	"errors"
)

// ErrWindowBlocked means no print window could be opened; callers fall back
// to viewing the report.
var ErrWindowBlocked = errors.New("print window could not be opened")

type TabOpener interface {
	OpenTab(ctx context.Context, url string) error
}

type Downloader interface {
	Trigger(ctx context.Context, data []byte, filename, mime string) error
}

type PrintHost interface {
	OpenWindow(ctx context.Context, url string) (PrintWindow, error)
}

type PrintWindow interface {
	// Loaded is closed once the window has the report content.
	Loaded() <-chan struct{}
	Print(ctx context.Context) error
	Close() error
}
