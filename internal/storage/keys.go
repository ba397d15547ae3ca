package storage

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// parseBlobKey splits "<escaped request id>/<blob>.pdf" keys written by the
// blob manager.
func parseBlobKey(key string) (string, string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(key, "\\", "/"), "/")
	parts := strings.SplitN(cleaned, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("blob key %q does not match request_id/blob", key)
	}
	requestID, err := url.PathUnescape(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", "", fmt.Errorf("blob key %q: %w", key, err)
	}
	blobName := strings.TrimSpace(parts[1])
	if requestID == "" || blobName == "" || strings.Contains(blobName, "/") {
		return "", "", fmt.Errorf("blob key %q missing request id or blob name", key)
	}
	if !strings.HasSuffix(blobName, ".pdf") {
		return "", "", fmt.Errorf("blob key %q is not a report blob", key)
	}
	return requestID, blobName, nil
}

func isOrphan(key string, lastModified, cutoff time.Time) bool {
	if _, _, err := parseBlobKey(key); err != nil {
		return false
	}
	return lastModified.Before(cutoff)
}
