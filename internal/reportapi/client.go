package reportapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"lab-report-access/internal/domain"
)

const (
	reportStatusPath   = "/test-requests/report-status/"
	downloadReportPath = "/test-requests/download-report/"

	defaultTimeout     = 30 * time.Second
	defaultMaxBytes    = 50 << 20
	maxStatusBodyBytes = 1 << 20
)

var (
	availabilitySchema = jsonschema.MustCompileString("report-availability.json", domain.ReportAvailabilityJSONSchema)
	errorBodySchema    = jsonschema.MustCompileString("report-error.json", domain.ReportErrorJSONSchema)
)

type HTTPClient struct {
	baseURL    string
	creds      CredentialStore
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	logger     zerolog.Logger
	now        func() time.Time
}

type Option func(*HTTPClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(c *HTTPClient) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *HTTPClient) { c.now = now }
}

func NewHTTPClient(baseURL string, creds CredentialStore, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		creds:      creds,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		maxBytes:   defaultMaxBytes,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCredentials returns a copy of the client bound to another credential
// store, e.g. the bearer token of an inbound gateway request.
func (c *HTTPClient) WithCredentials(creds CredentialStore) *HTTPClient {
	cp := *c
	cp.creds = creds
	return &cp
}

func (c *HTTPClient) bearer(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", domain.NewReportError(domain.KindAuthRequired, "", ErrNoCredential)
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return "", domain.NewReportError(domain.KindAuthRequired, "", err)
	}
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return "", domain.NewReportError(domain.KindAuthRequired, "", ErrNoCredential)
	}
	if err := checkExpiry(token, c.now()); err != nil {
		return "", domain.NewReportError(domain.KindAuthRequired, "", err)
	}
	return token, nil
}

func (c *HTTPClient) endpoint(prefix, requestID string) string {
	return c.baseURL + prefix + url.PathEscape(requestID)
}

func (c *HTTPClient) get(ctx context.Context, endpoint, token, accept string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewReportError(domain.KindNetworkOrServer, "", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewReportError(domain.KindNetworkOrServer, "", err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewReportError(domain.KindAuthRequired, "", fmt.Errorf("report service returned status %d", resp.StatusCode))
	default:
		return domain.NewReportError(domain.KindNetworkOrServer, "", fmt.Errorf("report service returned status %d", resp.StatusCode))
	}
}

func validateJSON(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
