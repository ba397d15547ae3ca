package temporal

import "lab-report-access/internal/domain"

const ReportContextSignalName = "reportContextUpdated"

// ReportContextSignal carries status and payment changes made by the external
// request workflow while a delivery is waiting.
type ReportContextSignal struct {
	Status  domain.WorkflowStatus  `json:"status"`
	Billing *domain.BillingSummary `json:"billing,omitempty"`
}
