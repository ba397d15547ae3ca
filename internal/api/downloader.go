package api

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
)

// responseDownloader hands the normalized report to the HTTP caller as an
// attachment.
type responseDownloader struct {
	w       http.ResponseWriter
	started bool
}

func (d *responseDownloader) Trigger(_ context.Context, data []byte, filename, contentType string) error {
	d.started = true
	d.w.Header().Set("Content-Type", contentType)
	d.w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	d.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	d.w.Header().Set("Cache-Control", "no-store")
	d.w.WriteHeader(http.StatusOK)
	if _, err := d.w.Write(data); err != nil {
		return fmt.Errorf("write report response: %w", err)
	}
	return nil
}
