package domain

import "strings"

const (
	ReasonTestsIncomplete   = "Tests not fully completed"
	ReasonPaymentIncomplete = "Payment not fully completed"
	ReasonReportUnavailable = "Report not available"
)

type GateDecision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons"`
}

func (d GateDecision) Message() string {
	return strings.Join(d.Reasons, " and ")
}

// OnlyAvailabilityBlocks reports whether the report service is the sole reason
// the gate is closed.
func (d GateDecision) OnlyAvailabilityBlocks() bool {
	return !d.Allowed && len(d.Reasons) == 1 && d.Reasons[0] == ReasonReportUnavailable
}

// ComputeDecision must be re-evaluated on every status, billing or
// availability change; results are never memoized.
func ComputeDecision(status WorkflowStatus, billing *BillingSummary, availability ReportAvailability) GateDecision {
	reasons := make([]string, 0, 3)
	if !IsTestCompleted(status) {
		reasons = append(reasons, ReasonTestsIncomplete)
	}
	if !IsSettled(billing) {
		reasons = append(reasons, ReasonPaymentIncomplete)
	}
	if !availability.IsAvailable {
		reasons = append(reasons, ReasonReportUnavailable)
	}
	return GateDecision{Allowed: len(reasons) == 0, Reasons: reasons}
}

// IsActionAllowed evaluates only the locally known predicates, for rendering
// controls without a network round trip.
func IsActionAllowed(status WorkflowStatus, billing *BillingSummary) GateDecision {
	return ComputeDecision(status, billing, ReportAvailability{IsAvailable: true})
}
