package blob

import (
	"errors"
	"sync"
	"sync/atomic"

	"lab-report-access/internal/domain"
)

var ErrRevoked = errors.New("resource handle already revoked")

// Handle is a transient, revocable reference to a materialized report.
// Revoke is idempotent; nothing may dereference the handle afterwards.
type Handle struct {
	URL       string
	RequestID string

	payload domain.NormalizedPayload
	release func() error
	onError func(error)

	once    sync.Once
	revoked atomic.Bool
}

func (h *Handle) Revoke() {
	h.once.Do(func() {
		h.revoked.Store(true)
		if h.release == nil {
			return
		}
		if err := h.release(); err != nil && h.onError != nil {
			h.onError(err)
		}
	})
}

func (h *Handle) Revoked() bool {
	return h.revoked.Load()
}

func (h *Handle) Payload() (domain.NormalizedPayload, error) {
	if h.Revoked() {
		return domain.NormalizedPayload{}, ErrRevoked
	}
	return h.payload, nil
}
