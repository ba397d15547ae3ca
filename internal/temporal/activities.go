package temporal

import (
	"context"

	"lab-report-access/internal/domain"
	"lab-report-access/internal/report"
)

type AvailabilityChecker interface {
	FetchAvailability(ctx context.Context, requestID string) (domain.ReportAvailability, error)
}

type ReportDownloader interface {
	DownloadReport(ctx context.Context, req report.ActionRequest) (report.ActionResult, error)
}

type Activities struct {
	Availability AvailabilityChecker
	Reports      ReportDownloader
}

type EvaluateGateInput struct {
	RequestID string
	Status    domain.WorkflowStatus
	Billing   *domain.BillingSummary
}

type EvaluateGateOutput struct {
	Allowed       bool
	Reasons       []string
	Message       string
	CurrentStatus string
	ErrorKind     domain.ErrorKind
}

type DeliverReportInput struct {
	RequestID string
	Status    domain.WorkflowStatus
	Billing   *domain.BillingSummary
}

type DeliverReportOutput struct {
	InvocationID string
	Filename     string
	Bytes        int
	ErrorKind    domain.ErrorKind
	UserMessage  string
}

func (a *Activities) EvaluateGateActivity(ctx context.Context, input EvaluateGateInput) (EvaluateGateOutput, error) {
	availability, err := a.Availability.FetchAvailability(ctx, input.RequestID)
	decision := domain.ComputeDecision(input.Status, input.Billing, availability)

	out := EvaluateGateOutput{
		Allowed:       decision.Allowed,
		Reasons:       decision.Reasons,
		Message:       decision.Message(),
		CurrentStatus: availability.CurrentStatus,
	}
	if decision.OnlyAvailabilityBlocks() && availability.Message != "" {
		out.Message = availability.Message
	}
	if err != nil {
		out.ErrorKind = domain.KindOf(err)
	}
	return out, nil
}

// DeliverReportActivity reports classified failures in its output so the
// workflow can tell a closed gate from a broken upstream.
func (a *Activities) DeliverReportActivity(ctx context.Context, input DeliverReportInput) (DeliverReportOutput, error) {
	res, err := a.Reports.DownloadReport(ctx, report.ActionRequest{
		RequestID: input.RequestID,
		Status:    input.Status,
		Billing:   input.Billing,
	})
	out := DeliverReportOutput{
		InvocationID: res.InvocationID,
		Filename:     res.Filename,
		Bytes:        res.Bytes,
	}
	if err != nil {
		out.ErrorKind = domain.KindOf(err)
		out.UserMessage = domain.UserMessage(err)
	}
	return out, nil
}
