package temporal

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"lab-report-access/internal/domain"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	gateIn     []EvaluateGateInput
	gateOut    []EvaluateGateOutput
	deliverIn  *DeliverReportInput
	deliverOut *DeliverReportOutput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var _ = Describe("ReportDeliveryWorkflow blackbox happy path", func() {
	It("checks the gate, downloads the report once and completes as delivered", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()

		availability := &fakeAvailability{avail: domain.ReportAvailability{IsAvailable: true, CurrentStatus: "Report_Sent", Message: "Report ready"}}
		downloads := &fakeDownloads{}
		acts := &Activities{Availability: availability, Reports: downloads}

		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "EvaluateGateActivity":
				var in EvaluateGateInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.gateIn = append(trace.gateIn, in)
				trace.mu.Unlock()
			case "DeliverReportActivity":
				var in DeliverReportInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.deliverIn = &in
				trace.mu.Unlock()
			}
		})

		env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "EvaluateGateActivity":
				var out EvaluateGateOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.gateOut = append(trace.gateOut, out)
				trace.mu.Unlock()
			case "DeliverReportActivity":
				var out DeliverReportOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.deliverOut = &out
				trace.mu.Unlock()
			}
		})

		env.RegisterWorkflow(ReportDeliveryWorkflow)
		env.RegisterActivity(acts)

		billing := &domain.BillingSummary{Amount: 1000, PaidAmount: 1000}

		By("starting delivery for a sent and fully paid report")
		env.ExecuteWorkflow(ReportDeliveryWorkflow, DeliveryInput{
			RequestID:       "abc123",
			Status:          domain.StatusReportSent,
			Billing:         billing,
			Deadline:        time.Hour,
			RecheckInterval: 10 * time.Minute,
		})

		By("validating workflow completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var wfResult DeliveryResult
		Expect(env.GetWorkflowResult(&wfResult)).To(Succeed())
		Expect(wfResult.RequestID).To(Equal("abc123"))
		Expect(wfResult.Status).To(Equal(DeliveryDelivered))
		Expect(wfResult.Filename).To(Equal("test-report-abc123.pdf"))
		Expect(wfResult.Reasons).To(BeEmpty())
		Expect(wfResult.Checks).To(Equal(1))

		By("validating the gate runs before the single download")
		Expect(trace.startedOrder).To(Equal([]string{"EvaluateGateActivity", "DeliverReportActivity"}))
		Expect(trace.completedOrder).To(Equal([]string{"EvaluateGateActivity", "DeliverReportActivity"}))

		Expect(trace.gateIn).To(HaveLen(1))
		Expect(trace.gateIn[0].RequestID).To(Equal("abc123"))
		Expect(trace.gateIn[0].Status).To(Equal(domain.StatusReportSent))
		Expect(trace.gateIn[0].Billing).To(Equal(billing))

		Expect(trace.gateOut).To(HaveLen(1))
		Expect(trace.gateOut[0].Allowed).To(BeTrue())
		Expect(trace.gateOut[0].CurrentStatus).To(Equal("Report_Sent"))
		Expect(trace.gateOut[0].ErrorKind).To(BeEmpty())

		Expect(trace.deliverIn).ToNot(BeNil())
		Expect(trace.deliverIn.RequestID).To(Equal("abc123"))

		Expect(trace.deliverOut).ToNot(BeNil())
		Expect(trace.deliverOut.InvocationID).To(Equal("inv-1"))
		Expect(trace.deliverOut.Bytes).To(Equal(1024))

		By("validating side effects on the collaborators")
		Expect(availability.callCount()).To(Equal(1))
		Expect(downloads.callCount()).To(Equal(1))
	})
})
