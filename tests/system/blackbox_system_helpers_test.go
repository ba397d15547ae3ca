//go:build system

package system_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"lab-report-access/internal/domain"
	appTemporal "lab-report-access/internal/temporal"
)

type gateResponse struct {
	Allowed       bool     `json:"allowed"`
	Reasons       []string `json:"reasons"`
	Message       string   `json:"message"`
	DisplayStatus string   `json:"displayStatus"`
}

type deliveryResponse struct {
	RequestID  string `json:"requestId"`
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`
}

type activityTrace struct {
	ScheduledOrder []string
	CompletedOrder []string
	Inputs         map[string]any
	Outputs        map[string]any
}

type systemTestConfig struct {
	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string
	APIBaseURL        string
	APIHealthPath     string
	APIReadyPath      string
	MinioReadyURL     string
	ReportToken       string
	ReportRequestID   string

	RequiredComposeServices []string
	ExpectedActivityOrder   []string

	PreflightTimeout          time.Duration
	WorkerPollerTimeout       time.Duration
	WorkflowCompletionTimeout time.Duration
}

var defaultSystemTestConfig = systemTestConfig{
	TemporalAddress:   "localhost:7233",
	TemporalNamespace: "default",
	TemporalTaskQueue: "report-delivery-task-queue",
	APIBaseURL:        "http://localhost:8080",
	APIHealthPath:     "/healthz",
	APIReadyPath:      "/readyz",
	MinioReadyURL:     "http://localhost:9000/minio/health/ready",
	ReportRequestID:   "abc123",
	RequiredComposeServices: []string{
		"temporal",
		"minio",
		"api",
		"worker",
	},
	ExpectedActivityOrder: []string{
		"EvaluateGateActivity",
		"DeliverReportActivity",
	},
	PreflightTimeout:          8 * time.Second,
	WorkerPollerTimeout:       12 * time.Second,
	WorkflowCompletionTimeout: 90 * time.Second,
}

func dialTemporal(cfg systemTestConfig) (client.Client, error) {
	return client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
}

// waitForWorkerPoller returns once Temporal answers and a worker polls the
// activity task queue.
func waitForWorkerPoller(cfg systemTestConfig, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		c, err := dialTemporal(cfg)
		if err != nil {
			lastErr = err
			time.Sleep(time.Second)
			continue
		}
		resp, err := c.DescribeTaskQueue(context.Background(), cfg.TemporalTaskQueue, enumspb.TASK_QUEUE_TYPE_ACTIVITY)
		c.Close()
		switch {
		case err != nil:
			lastErr = err
		case len(resp.Pollers) == 0:
			lastErr = fmt.Errorf("no pollers on %q", cfg.TemporalTaskQueue)
		default:
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("worker not polling within %s: %v", timeout, lastErr)
}

func waitForHTTPStatus(url string, expectedStatus int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	httpClient := &http.Client{Timeout: 5 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := httpClient.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == expectedStatus {
				return nil
			}
		}
		time.Sleep(1 * time.Second)
	}
	return fmt.Errorf("endpoint %s did not return %d in %s", url, expectedStatus, timeout)
}

func loadSystemTestConfig() systemTestConfig {
	cfg := defaultSystemTestConfig
	cfg.RequiredComposeServices = append([]string(nil), defaultSystemTestConfig.RequiredComposeServices...)
	cfg.ExpectedActivityOrder = append([]string(nil), defaultSystemTestConfig.ExpectedActivityOrder...)

	cfg.TemporalAddress = getenv("SYSTEM_TEST_TEMPORAL_ADDRESS", cfg.TemporalAddress)
	cfg.TemporalNamespace = getenv("SYSTEM_TEST_TEMPORAL_NAMESPACE", cfg.TemporalNamespace)
	cfg.TemporalTaskQueue = getenv("SYSTEM_TEST_TEMPORAL_TASK_QUEUE", cfg.TemporalTaskQueue)
	cfg.APIBaseURL = getenv("SYSTEM_TEST_API_URL", cfg.APIBaseURL)
	cfg.APIHealthPath = getenv("SYSTEM_TEST_API_HEALTH_PATH", cfg.APIHealthPath)
	cfg.APIReadyPath = getenv("SYSTEM_TEST_API_READY_PATH", cfg.APIReadyPath)
	cfg.MinioReadyURL = getenv("SYSTEM_TEST_MINIO_READY_URL", cfg.MinioReadyURL)
	cfg.ReportToken = getenv("SYSTEM_TEST_REPORT_TOKEN", cfg.ReportToken)
	cfg.ReportRequestID = getenv("SYSTEM_TEST_REPORT_REQUEST_ID", cfg.ReportRequestID)
	cfg.PreflightTimeout = getenvDuration("SYSTEM_TEST_PREFLIGHT_TIMEOUT", cfg.PreflightTimeout)
	cfg.WorkerPollerTimeout = getenvDuration("SYSTEM_TEST_WORKER_POLLER_TIMEOUT", cfg.WorkerPollerTimeout)
	cfg.WorkflowCompletionTimeout = getenvDuration("SYSTEM_TEST_WORKFLOW_TIMEOUT", cfg.WorkflowCompletionTimeout)

	return cfg
}

func getGate(apiBaseURL, requestID, query string) (gateResponse, error) {
	url := strings.TrimRight(apiBaseURL, "/") + "/v1/reports/" + requestID + "/gate?" + query
	body, status, err := doRequest(http.MethodGet, url, "", nil)
	if err != nil {
		return gateResponse{}, err
	}
	if status != http.StatusOK {
		return gateResponse{}, fmt.Errorf("gate failed: status=%d body=%s", status, strings.TrimSpace(string(body)))
	}
	var out gateResponse
	return out, json.Unmarshal(body, &out)
}

func downloadReport(apiBaseURL, token, requestID string, payload any) ([]byte, int, error) {
	url := strings.TrimRight(apiBaseURL, "/") + "/v1/reports/" + requestID + "/download"
	return doRequest(http.MethodPost, url, token, payload)
}

func startDelivery(apiBaseURL, token, requestID string, payload any) (deliveryResponse, error) {
	url := strings.TrimRight(apiBaseURL, "/") + "/v1/reports/" + requestID + "/deliveries"
	body, status, err := doRequest(http.MethodPost, url, token, payload)
	if err != nil {
		return deliveryResponse{}, err
	}
	if status != http.StatusAccepted {
		return deliveryResponse{}, fmt.Errorf("start delivery failed: status=%d body=%s", status, strings.TrimSpace(string(body)))
	}
	var out deliveryResponse
	return out, json.Unmarshal(body, &out)
}

func doRequest(method, url, token string, payload any) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func collectActivityTrace(ctx context.Context, temporalClient client.Client, workflowID string) (activityTrace, error) {
	trace := activityTrace{
		Inputs:  make(map[string]any),
		Outputs: make(map[string]any),
	}
	dc := converter.GetDefaultDataConverter()
	scheduledByEventID := make(map[int64]string)

	iter := temporalClient.GetWorkflowHistory(ctx, workflowID, "", false, enumspb.HISTORY_EVENT_FILTER_TYPE_ALL_EVENT)
	for iter.HasNext() {
		event, err := iter.Next()
		if err != nil {
			return activityTrace{}, err
		}

		if scheduled := event.GetActivityTaskScheduledEventAttributes(); scheduled != nil {
			name := scheduled.GetActivityType().GetName()
			trace.ScheduledOrder = append(trace.ScheduledOrder, name)
			scheduledByEventID[event.GetEventId()] = name

			input, err := decodeActivityInput(dc, name, scheduled.GetInput())
			if err != nil {
				return activityTrace{}, err
			}
			trace.Inputs[name] = input
			continue
		}

		if completed := event.GetActivityTaskCompletedEventAttributes(); completed != nil {
			name := scheduledByEventID[completed.GetScheduledEventId()]
			trace.CompletedOrder = append(trace.CompletedOrder, name)

			output, err := decodeActivityOutput(dc, name, completed.GetResult())
			if err != nil {
				return activityTrace{}, err
			}
			trace.Outputs[name] = output
		}
	}
	return trace, nil
}

// activityPayloads maps activity names to fresh input and output values for
// decoding history payloads.
var activityPayloads = map[string]struct {
	input  func() any
	output func() any
}{
	"EvaluateGateActivity": {
		input:  func() any { return &appTemporal.EvaluateGateInput{} },
		output: func() any { return &appTemporal.EvaluateGateOutput{} },
	},
	"DeliverReportActivity": {
		input:  func() any { return &appTemporal.DeliverReportInput{} },
		output: func() any { return &appTemporal.DeliverReportOutput{} },
	},
}

func decodeActivityInput(dc converter.DataConverter, name string, payloads *commonpb.Payloads) (any, error) {
	if payloads == nil {
		return nil, nil
	}
	target := any(&map[string]any{})
	if kinds, ok := activityPayloads[name]; ok {
		target = kinds.input()
	}
	return derefDecoded(dc, payloads, target)
}

func decodeActivityOutput(dc converter.DataConverter, name string, payloads *commonpb.Payloads) (any, error) {
	if payloads == nil || len(payloads.Payloads) == 0 {
		return nil, nil
	}
	target := any(&map[string]any{})
	if kinds, ok := activityPayloads[name]; ok {
		target = kinds.output()
	}
	return derefDecoded(dc, payloads, target)
}

func derefDecoded(dc converter.DataConverter, payloads *commonpb.Payloads, target any) (any, error) {
	if err := dc.FromPayloads(payloads, target); err != nil {
		return nil, err
	}
	return reflect.ValueOf(target).Elem().Interface(), nil
}

func settledBilling(amount float64) *domain.BillingSummary {
	return &domain.BillingSummary{Amount: amount, PaidAmount: amount}
}

func runCommand(workdir string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = workdir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func requireComposeServicesRunning(repoRoot string, services []string) error {
	out, err := runCommand(repoRoot, "docker", "compose", "ps", "--services", "--status", "running")
	if err != nil {
		return fmt.Errorf("failed to inspect docker compose services: %w (output: %s)", err, strings.TrimSpace(out))
	}

	running := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		running[name] = struct{}{}
	}

	var missing []string
	for _, svc := range services {
		if _, ok := running[svc]; !ok {
			missing = append(missing, svc)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required compose services are not running: %s (run `docker compose up -d %s`)", strings.Join(missing, ", "), strings.Join(services, " "))
	}
	return nil
}

func getenv(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("go.mod not found from current directory")
}
