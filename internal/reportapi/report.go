package reportapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"lab-report-access/internal/domain"
	"lab-report-access/internal/payload"
)

const reportAccept = "application/pdf, application/json;q=0.9, text/plain;q=0.8"

// FetchReport issues exactly one request. It never reaches the network
// without a usable credential.
func (c *HTTPClient) FetchReport(ctx context.Context, requestID string) (payload.RawResponse, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return payload.RawResponse{}, err
	}
	if strings.TrimSpace(requestID) == "" {
		return payload.RawResponse{}, domain.NewReportError(domain.KindNetworkOrServer, "", fmt.Errorf("request id is required"))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.get(reqCtx, c.endpoint(downloadReportPath, requestID), token, reportAccept)
	if err != nil {
		return payload.RawResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		body, _ := readLimited(resp.Body, maxStatusBodyBytes)
		return payload.RawResponse{}, domain.NewReportError(domain.KindNotFound, notFoundSuggestion(body), fmt.Errorf("report %s not found", requestID))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return payload.RawResponse{}, statusError(resp)
	}

	body, err := readLimited(resp.Body, c.maxBytes+1)
	if err != nil {
		return payload.RawResponse{}, domain.NewReportError(domain.KindNetworkOrServer, "", fmt.Errorf("read report body: %w", err))
	}
	if int64(len(body)) > c.maxBytes {
		return payload.RawResponse{}, domain.NewReportError(domain.KindPayload, "", fmt.Errorf("report exceeds %d bytes", c.maxBytes))
	}

	raw := payload.NewRawResponse(resp.Header.Get("Content-Type"), body)
	c.logger.Debug().Str("request_id", requestID).Str("shape", raw.Shape.String()).Int("bytes", len(body)).Msg("report payload fetched")
	return raw, nil
}

func notFoundSuggestion(body []byte) string {
	if len(body) == 0 || validateJSON(errorBodySchema, body) != nil {
		return ""
	}
	var parsed struct {
		Message    string `json:"message"`
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if s := strings.TrimSpace(parsed.Suggestion); s != "" {
		return s
	}
	return strings.TrimSpace(parsed.Message)
}
