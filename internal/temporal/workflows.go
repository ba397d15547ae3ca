package temporal

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"lab-report-access/internal/domain"
)

const (
	ReportDeliveryWorkflowName = "ReportDeliveryWorkflow"

	defaultRecheckInterval = 15 * time.Minute
	defaultDeliveryWindow  = 72 * time.Hour
)

type DeliveryStatus string

const (
	DeliveryDelivered    DeliveryStatus = "DELIVERED"
	DeliveryNotAvailable DeliveryStatus = "NOT_AVAILABLE"
	DeliveryAuthRequired DeliveryStatus = "AUTH_REQUIRED"
	DeliveryFailed       DeliveryStatus = "FAILED"
)

type DeliveryInput struct {
	RequestID       string
	Status          domain.WorkflowStatus
	Billing         *domain.BillingSummary
	Deadline        time.Duration
	RecheckInterval time.Duration
}

type DeliveryResult struct {
	RequestID string
	Status    DeliveryStatus
	Reasons   []string
	Message   string
	Filename  string
	Checks    int
}

// ReportDeliveryWorkflow downloads a report once the gate opens. The gate is
// re-evaluated on every context signal and every recheck interval until the
// deadline passes.
func ReportDeliveryWorkflow(ctx workflow.Context, input DeliveryInput) (DeliveryResult, error) {
	logger := workflow.GetLogger(ctx)

	recheck := input.RecheckInterval
	if recheck <= 0 {
		recheck = defaultRecheckInterval
	}
	window := input.Deadline
	if window <= 0 {
		window = defaultDeliveryWindow
	}
	deadline := workflow.Now(ctx).Add(window)

	gateCtx := mustActivityContext(ctx, ActivityPolicyEvaluateGate)
	deliverCtx := mustActivityContext(ctx, ActivityPolicyDeliverReport)

	status, billing := input.Status, input.Billing
	signals := workflow.GetSignalChannel(ctx, ReportContextSignalName)
	applySignal := func(sig ReportContextSignal) {
		if sig.Status != "" {
			status = sig.Status
		}
		if sig.Billing != nil {
			billing = sig.Billing
		}
	}

	result := DeliveryResult{RequestID: input.RequestID}
	for {
		var sig ReportContextSignal
		for signals.ReceiveAsync(&sig) {
			applySignal(sig)
			sig = ReportContextSignal{}
		}

		var gate EvaluateGateOutput
		if err := workflow.ExecuteActivity(gateCtx, (*Activities).EvaluateGateActivity, EvaluateGateInput{
			RequestID: input.RequestID,
			Status:    status,
			Billing:   billing,
		}).Get(ctx, &gate); err != nil {
			return DeliveryResult{}, err
		}
		result.Checks++
		result.Reasons = gate.Reasons
		result.Message = gate.Message

		if gate.ErrorKind == domain.KindAuthRequired {
			result.Status = DeliveryAuthRequired
			return result, nil
		}

		if gate.Allowed {
			var delivered DeliverReportOutput
			if err := workflow.ExecuteActivity(deliverCtx, (*Activities).DeliverReportActivity, DeliverReportInput{
				RequestID: input.RequestID,
				Status:    status,
				Billing:   billing,
			}).Get(ctx, &delivered); err != nil {
				return DeliveryResult{}, err
			}

			switch delivered.ErrorKind {
			case "":
				result.Status = DeliveryDelivered
				result.Filename = delivered.Filename
				result.Reasons = nil
				result.Message = ""
				return result, nil
			case domain.KindNotAvailable:
				// availability flipped between the two calls; keep waiting
				result.Reasons = []string{domain.ReasonReportUnavailable}
				result.Message = delivered.UserMessage
			case domain.KindAuthRequired:
				result.Status = DeliveryAuthRequired
				result.Message = delivered.UserMessage
				return result, nil
			default:
				result.Status = DeliveryFailed
				result.Message = delivered.UserMessage
				return result, nil
			}
		}

		remaining := deadline.Sub(workflow.Now(ctx))
		if remaining <= 0 {
			result.Status = DeliveryNotAvailable
			return result, nil
		}
		wait := recheck
		if remaining < wait {
			wait = remaining
		}
		logger.Info("report not yet accessible", "request_id", input.RequestID, "reasons", result.Reasons, "next_check_in", wait)

		timerCtx, cancel := workflow.WithCancel(ctx)
		selector := workflow.NewSelector(ctx)
		selector.AddFuture(workflow.NewTimer(timerCtx, wait), func(workflow.Future) {})
		selector.AddReceive(signals, func(c workflow.ReceiveChannel, _ bool) {
			var sig ReportContextSignal
			c.Receive(ctx, &sig)
			applySignal(sig)
		})
		selector.Select(ctx)
		cancel()
	}
}
