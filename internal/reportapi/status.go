package reportapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"lab-report-access/internal/domain"
)

// FetchAvailability always returns a usable availability. On any failure it is
// the fail-closed value and the error explains why.
func (c *HTTPClient) FetchAvailability(ctx context.Context, requestID string) (domain.ReportAvailability, error) {
	avail, err := c.fetchAvailability(ctx, requestID)
	if err != nil {
		c.logger.Warn().Err(err).Str("request_id", requestID).Msg("report availability check failed closed")
		return domain.UnavailableReport(), err
	}
	return avail, nil
}

func (c *HTTPClient) fetchAvailability(ctx context.Context, requestID string) (domain.ReportAvailability, error) {
	if strings.TrimSpace(requestID) == "" {
		return domain.ReportAvailability{}, domain.NewReportError(domain.KindNetworkOrServer, "", fmt.Errorf("request id is required"))
	}
	token, err := c.bearer(ctx)
	if err != nil {
		return domain.ReportAvailability{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.get(reqCtx, c.endpoint(reportStatusPath, requestID), token, "application/json")
	if err != nil {
		return domain.ReportAvailability{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ReportAvailability{}, statusError(resp)
	}

	body, err := readLimited(resp.Body, maxStatusBodyBytes)
	if err != nil {
		return domain.ReportAvailability{}, domain.NewReportError(domain.KindNetworkOrServer, "", err)
	}
	if err := validateJSON(availabilitySchema, body); err != nil {
		return domain.ReportAvailability{}, domain.NewReportError(domain.KindNetworkOrServer, "", fmt.Errorf("invalid report status body: %w", err))
	}

	var avail domain.ReportAvailability
	if err := json.Unmarshal(body, &avail); err != nil {
		return domain.ReportAvailability{}, domain.NewReportError(domain.KindNetworkOrServer, "", fmt.Errorf("decode report status: %w", err))
	}
	if avail.CurrentStatus == "" {
		avail.CurrentStatus = domain.AvailabilityUnknownStatus
	}
	if !avail.IsAvailable && avail.Message == "" {
		avail.Message = domain.ReportNotAvailableMessage
	}
	return avail, nil
}
