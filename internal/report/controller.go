package report

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lab-report-access/internal/blob"
	"lab-report-access/internal/domain"
	"lab-report-access/internal/payload"
)

type AvailabilityClient interface {
	FetchAvailability(ctx context.Context, requestID string) (domain.ReportAvailability, error)
}

type PayloadFetcher interface {
	FetchReport(ctx context.Context, requestID string) (payload.RawResponse, error)
}

type ResourceManager interface {
	Materialize(ctx context.Context, requestID string, p domain.NormalizedPayload) (*blob.Handle, error)
	View(ctx context.Context, h *blob.Handle) error
	Download(ctx context.Context, h *blob.Handle, filename string) error
	Print(ctx context.Context, h *blob.Handle) error
}

type ActionRequest struct {
	RequestID string                 `json:"requestId"`
	Status    domain.WorkflowStatus  `json:"status"`
	Billing   *domain.BillingSummary `json:"billing,omitempty"`
}

// ActionResult is the complete outcome of one invocation. Nothing about it is
// retained by the controller.
type ActionResult struct {
	Action       domain.Action             `json:"action"`
	RequestID    string                    `json:"requestId"`
	InvocationID string                    `json:"invocationId"`
	Availability domain.ReportAvailability `json:"availability"`
	Decision     domain.GateDecision       `json:"decision"`
	Filename     string                    `json:"filename,omitempty"`
	Bytes        int                       `json:"bytes,omitempty"`
	ErrorKind    domain.ErrorKind          `json:"errorKind,omitempty"`
	UserMessage  string                    `json:"userMessage,omitempty"`
	Err          error                     `json:"-"`
}

type Controller struct {
	status       AvailabilityClient
	fetcher      PayloadFetcher
	blobs        ResourceManager
	artifactKind string
	logger       zerolog.Logger

	inFlight atomic.Int64
}

type Option func(*Controller)

func WithArtifactKind(kind string) Option {
	return func(c *Controller) {
		if kind != "" {
			c.artifactKind = kind
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(status AvailabilityClient, fetcher PayloadFetcher, blobs ResourceManager, opts ...Option) *Controller {
	c := &Controller{
		status:       status,
		fetcher:      fetcher,
		blobs:        blobs,
		artifactKind: domain.DefaultArtifactKind,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsActionAllowed never touches the network.
func (c *Controller) IsActionAllowed(status domain.WorkflowStatus, billing *domain.BillingSummary) domain.GateDecision {
	return domain.IsActionAllowed(status, billing)
}

// InFlight is the number of invocations currently running. Callers use it to
// disable triggering controls and avoid duplicate fetches.
func (c *Controller) InFlight() int {
	return int(c.inFlight.Load())
}

func (c *Controller) ViewReport(ctx context.Context, req ActionRequest) (ActionResult, error) {
	return c.run(ctx, domain.ActionView, req, func(ctx context.Context, h *blob.Handle, _ string) error {
		return c.blobs.View(ctx, h)
	})
}

func (c *Controller) DownloadReport(ctx context.Context, req ActionRequest) (ActionResult, error) {
	return c.run(ctx, domain.ActionDownload, req, c.blobs.Download)
}

func (c *Controller) PrintReport(ctx context.Context, req ActionRequest) (ActionResult, error) {
	return c.run(ctx, domain.ActionPrint, req, func(ctx context.Context, h *blob.Handle, _ string) error {
		return c.blobs.Print(ctx, h)
	})
}

type consumeFunc func(ctx context.Context, h *blob.Handle, filename string) error

func (c *Controller) run(ctx context.Context, action domain.Action, req ActionRequest, consume consumeFunc) (res ActionResult, err error) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	res = ActionResult{
		Action:       action,
		RequestID:    req.RequestID,
		InvocationID: uuid.NewString(),
	}
	logger := c.logger.With().
		Str("request_id", req.RequestID).
		Str("action", string(action)).
		Str("invocation_id", res.InvocationID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			err = domain.NewReportError(domain.KindNetworkOrServer, "", fmt.Errorf("unexpected failure: %v", r))
		}
		if err != nil {
			res.Err = err
			res.ErrorKind = domain.KindOf(err)
			res.UserMessage = domain.UserMessage(err)
			logger.Warn().Err(err).Str("error_kind", string(res.ErrorKind)).Msg("report action failed")
			return
		}
		logger.Info().Str("filename", res.Filename).Int("bytes", res.Bytes).Msg("report action completed")
	}()

	availability, availErr := c.status.FetchAvailability(ctx, req.RequestID)
	res.Availability = availability
	res.Decision = domain.ComputeDecision(req.Status, req.Billing, availability)
	if !res.Decision.Allowed {
		return res, gateError(res.Decision, availability, availErr)
	}

	raw, err := c.fetcher.FetchReport(ctx, req.RequestID)
	if err != nil {
		return res, classify(err)
	}

	normalized, err := payload.Normalize(raw)
	if err != nil {
		return res, classify(err)
	}

	h, err := c.blobs.Materialize(ctx, req.RequestID, normalized)
	if err != nil {
		return res, classify(err)
	}
	defer h.Revoke()

	res.Filename = domain.ReportFilename(c.artifactKind, req.RequestID)
	res.Bytes = len(normalized.Bytes)
	if err := consume(ctx, h, res.Filename); err != nil {
		return res, classify(err)
	}
	return res, nil
}

func gateError(decision domain.GateDecision, availability domain.ReportAvailability, availErr error) error {
	if !availability.IsAvailable && domain.KindOf(availErr) == domain.KindAuthRequired {
		return availErr
	}
	if decision.OnlyAvailabilityBlocks() {
		msg := availability.Message
		if msg == "" {
			msg = domain.ReportNotAvailableMessage
		}
		return domain.NewReportError(domain.KindNotAvailable, msg, availErr)
	}
	return domain.NewReportError(domain.KindNotAvailable, decision.Message(), nil)
}

func classify(err error) error {
	var re *domain.ReportError
	if errors.As(err, &re) {
		return err
	}
	return domain.NewReportError(domain.KindNetworkOrServer, "", err)
}
