package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"lab-report-access/internal/blob"
	"lab-report-access/internal/config"
	"lab-report-access/internal/domain"
	"lab-report-access/internal/report"
	"lab-report-access/internal/reportapi"
	appTemporal "lab-report-access/internal/temporal"
)

// BlobSource is the read side of the in-memory blob store.
type BlobSource interface {
	Get(id string) ([]byte, string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cfg            config.Config
	reports        *reportapi.HTTPClient
	backend        blob.Backend
	blobs          BlobSource
	temporalClient client.Client
	logger         zerolog.Logger
}

type gateResponse struct {
	RequestID     string   `json:"requestId"`
	Allowed       bool     `json:"allowed"`
	Reasons       []string `json:"reasons"`
	Message       string   `json:"message"`
	DisplayStatus string   `json:"displayStatus"`
}

type downloadRequest struct {
	Status  domain.WorkflowStatus  `json:"status"`
	Billing *domain.BillingSummary `json:"billing,omitempty"`
}

type deliveryRequest struct {
	Status          domain.WorkflowStatus  `json:"status"`
	Billing         *domain.BillingSummary `json:"billing,omitempty"`
	Deadline        string                 `json:"deadline,omitempty"`
	RecheckInterval string                 `json:"recheckInterval,omitempty"`
}

type errorResponse struct {
	Error   string           `json:"error"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
	Reasons []string         `json:"reasons,omitempty"`
}

// NewHandler wires the gateway. blobs may be nil when the backend is not
// served by this process; temporalClient may be nil when delivery is disabled.
func NewHandler(cfg config.Config, reports *reportapi.HTTPClient, backend blob.Backend, blobs BlobSource, temporalClient client.Client, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:            cfg,
		reports:        reports,
		backend:        backend,
		blobs:          blobs,
		temporalClient: temporalClient,
		logger:         logger,
	}
}

func (h *Handler) GetGate(w http.ResponseWriter, r *http.Request, requestID string) {
	q := r.URL.Query()
	status := domain.WorkflowStatus(q.Get("status"))

	billing, err := billingFromQuery(q.Get("amount"), q.Get("paidAmount"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	decision := domain.IsActionAllowed(status, billing)
	reasons := decision.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	writeJSON(w, http.StatusOK, gateResponse{
		RequestID:     requestID,
		Allowed:       decision.Allowed,
		Reasons:       reasons,
		Message:       decision.Message(),
		DisplayStatus: domain.DisplayStatus(status, domain.ParseAudience(q.Get("audience"))),
	})
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request, requestID string) {
	availability, err := h.clientFor(r).FetchAvailability(r.Context(), requestID)
	if domain.KindOf(err) == domain.KindAuthRequired {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request, requestID string) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	downloader := &responseDownloader{w: w}
	reports := h.clientFor(r)
	manager := blob.NewManager(h.backend, blob.Capabilities{Downloader: downloader}, h.timings(), h.logger)
	controller := report.NewController(reports, reports, manager,
		report.WithArtifactKind(h.cfg.ReportArtifactKind),
		report.WithLogger(h.logger),
	)

	res, err := controller.DownloadReport(r.Context(), report.ActionRequest{
		RequestID: requestID,
		Status:    req.Status,
		Billing:   req.Billing,
	})
	if err == nil || downloader.started {
		return
	}
	writeJSON(w, statusFor(err), errorResponse{
		Error:   res.UserMessage,
		Kind:    res.ErrorKind,
		Reasons: res.Decision.Reasons,
	})
}

func (h *Handler) StartDelivery(w http.ResponseWriter, r *http.Request, requestID string) {
	if h.temporalClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "report delivery is not enabled"})
		return
	}

	var req deliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	deadline, err := parseOptionalDuration(req.Deadline)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deadline"})
		return
	}
	recheck, err := parseOptionalDuration(req.RecheckInterval)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid recheckInterval"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	workflowID := h.workflowID(requestID)
	run, err := h.temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.cfg.TemporalTaskQueue,
	}, appTemporal.ReportDeliveryWorkflow, appTemporal.DeliveryInput{
		RequestID:       requestID,
		Status:          req.Status,
		Billing:         req.Billing,
		Deadline:        deadline,
		RecheckInterval: recheck,
	})
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &alreadyStarted) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "delivery already running"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", requestID).Msg("start report delivery failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to start delivery"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"requestId":  requestID,
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}

func (h *Handler) SignalDeliveryContext(w http.ResponseWriter, r *http.Request, requestID string) {
	if h.temporalClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "report delivery is not enabled"})
		return
	}

	var sig appTemporal.ReportContextSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if err := h.temporalClient.SignalWorkflow(r.Context(), h.workflowID(requestID), "", appTemporal.ReportContextSignalName, sig); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to signal delivery"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"requestId": requestID, "status": "context_signal_sent"})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if p, ok := h.backend.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// clientFor forwards the caller's bearer token to the report service.
func (h *Handler) clientFor(r *http.Request) *reportapi.HTTPClient {
	auth := r.Header.Get("Authorization")
	token := ""
	if strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	return h.reports.WithCredentials(reportapi.StaticCredentials(token))
}

func (h *Handler) timings() blob.Timings {
	return blob.Timings{
		ViewRevokeDelay:  h.cfg.ViewRevokeDelay,
		PrintGraceDelay:  h.cfg.PrintGraceDelay,
		PrintLoadTimeout: h.cfg.PrintLoadTimeout,
	}
}

func (h *Handler) workflowID(requestID string) string {
	return fmt.Sprintf("%s-%s", h.cfg.WorkflowIDPrefix, requestID)
}

func serveBlob(w http.ResponseWriter, store BlobSource, id string) {
	data, mime, err := store.Get(id)
	if errors.Is(err, blob.ErrBlobNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "blob not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read blob"})
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func billingFromQuery(amount, paidAmount string) (*domain.BillingSummary, error) {
	if amount == "" && paidAmount == "" {
		return nil, nil
	}
	var billing domain.BillingSummary
	var err error
	if amount != "" {
		if billing.Amount, err = strconv.ParseFloat(amount, 64); err != nil {
			return nil, fmt.Errorf("invalid amount")
		}
	}
	if paidAmount != "" {
		if billing.PaidAmount, err = strconv.ParseFloat(paidAmount, 64); err != nil {
			return nil, fmt.Errorf("invalid paidAmount")
		}
	}
	return &billing, nil
}

func parseOptionalDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindAuthRequired:
		return http.StatusUnauthorized
	case domain.KindNotAvailable:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: domain.UserMessage(err), Kind: domain.KindOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
