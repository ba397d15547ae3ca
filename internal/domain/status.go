package domain

import "strings"

// WorkflowStatus is owned by the remote workflow engine. Values outside the
// constants below are still classified, never rejected.
type WorkflowStatus string

const (
	StatusPending                   WorkflowStatus = "Pending"
	StatusSuperadminReview          WorkflowStatus = "Superadmin_Review"
	StatusSuperadminRejected        WorkflowStatus = "Superadmin_Rejected"
	StatusApproved                  WorkflowStatus = "Approved"
	StatusBillingPending            WorkflowStatus = "Billing_Pending"
	StatusBillingGenerated          WorkflowStatus = "Billing_Generated"
	StatusBillingPaid               WorkflowStatus = "Billing_Paid"
	StatusAssigned                  WorkflowStatus = "Assigned"
	StatusSampleCollectionScheduled WorkflowStatus = "Sample_Collection_Scheduled"
	StatusSampleCollected           WorkflowStatus = "Sample_Collected"
	StatusInLabTesting              WorkflowStatus = "In_Lab_Testing"
	StatusTestingCompleted          WorkflowStatus = "Testing_Completed"
	StatusReportGenerated           WorkflowStatus = "Report_Generated"
	StatusReportSent                WorkflowStatus = "Report_Sent"
	StatusCompleted                 WorkflowStatus = "Completed"
	StatusFeedbackSent              WorkflowStatus = "feedback_sent"
	StatusCancelled                 WorkflowStatus = "Cancelled"
)

type Audience string

const (
	AudienceSuperadmin Audience = "superadmin"
	AudienceCenter     Audience = "center"
	AudienceLab        Audience = "lab"
	AudienceAccountant Audience = "accountant"
	AudiencePatient    Audience = "patient"
)

var testedStatuses = map[WorkflowStatus]struct{}{
	StatusTestingCompleted: {},
	StatusBillingPaid:      {},
	StatusReportGenerated:  {},
	StatusReportSent:       {},
	StatusCompleted:        {},
	StatusFeedbackSent:     {},
}

// Audiences that must not see the feedback sub-stage.
var feedbackHidden = map[Audience]struct{}{
	AudienceLab: {},
}

var statusSeparators = strings.NewReplacer("_", " ")

func IsTestCompleted(status WorkflowStatus) bool {
	_, ok := testedStatuses[status]
	return ok
}

func DisplayStatus(status WorkflowStatus, audience Audience) string {
	if status == StatusFeedbackSent {
		if _, hidden := feedbackHidden[audience]; hidden {
			return string(StatusCompleted)
		}
	}
	return statusSeparators.Replace(string(status))
}

func ParseAudience(v string) Audience {
	switch a := Audience(strings.ToLower(strings.TrimSpace(v))); a {
	case AudienceSuperadmin, AudienceCenter, AudienceLab, AudienceAccountant, AudiencePatient:
		return a
	default:
		return ""
	}
}
