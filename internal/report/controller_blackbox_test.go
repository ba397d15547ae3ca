package report_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"lab-report-access/internal/blob"
	"lab-report-access/internal/domain"
	"lab-report-access/internal/payload"
	"lab-report-access/internal/report"
	"lab-report-access/internal/reportapi"
)

var blackboxPDF = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog /Title (\"Lipid\\Panel\") >>\nendobj\n\t%%EOF\r\n")

type reportService struct {
	availability map[string]string
	statusHits   atomic.Int32
	downloadHits atomic.Int32
}

func (s *reportService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/test-requests/report-status/", func(w http.ResponseWriter, r *http.Request) {
		s.statusHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer lab-session" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/test-requests/report-status/")
		body, ok := s.availability[id]
		if !ok {
			body = `{"isAvailable":false,"currentStatus":"unknown"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/test-requests/download-report/", func(w http.ResponseWriter, r *http.Request) {
		s.downloadHits.Add(1)
		envelope, _ := json.Marshal(map[string]string{"pdfContent": payload.Escape(blackboxPDF)})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelope)
	})
	return mux
}

type derefTabs struct {
	mu     sync.Mutex
	store  *blob.MemoryStore
	opened []string
	seen   [][]byte
}

func (t *derefTabs) OpenTab(_ context.Context, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opened = append(t.opened, url)
	data, _, err := t.store.Open(url)
	if err != nil {
		return err
	}
	t.seen = append(t.seen, data)
	return nil
}

var _ = Describe("ReportActionController blackbox", func() {
	var (
		service    *reportService
		server     *httptest.Server
		store      *blob.MemoryStore
		tabs       *derefTabs
		controller *report.Controller
		token      reportapi.StaticCredentials
	)

	newController := func() *report.Controller {
		client := reportapi.NewHTTPClient(server.URL, token)
		manager := blob.NewManager(store, blob.Capabilities{Tabs: tabs}, blob.Timings{}, zerolog.Nop())
		return report.NewController(client, client, manager)
	}

	BeforeEach(func() {
		service = &reportService{availability: map[string]string{
			"abc123":  `{"isAvailable":true,"currentStatus":"Report_Sent","message":"Report ready"}`,
			"pending": `{"isAvailable":false,"currentStatus":"Report_Generated","message":"Report is awaiting sign-off"}`,
		}}
		server = httptest.NewServer(service.handler())
		store = blob.NewMemoryStore("http://reports.local")
		tabs = &derefTabs{store: store}
		token = "lab-session"
		controller = newController()
	})

	AfterEach(func() {
		server.Close()
	})

	It("views a completed and paid report and revokes the handle afterwards", func() {
		res, err := controller.ViewReport(context.Background(), report.ActionRequest{
			RequestID: "abc123",
			Status:    domain.StatusReportSent,
			Billing:   &domain.BillingSummary{Amount: 1000, PaidAmount: 1000},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Decision.Allowed).To(BeTrue())
		Expect(res.Availability.CurrentStatus).To(Equal("Report_Sent"))

		Expect(tabs.opened).To(HaveLen(1))
		Expect(tabs.seen).To(HaveLen(1))
		Expect(tabs.seen[0]).To(Equal(blackboxPDF))

		_, _, openErr := store.Open(tabs.opened[0])
		Expect(openErr).To(MatchError(blob.ErrBlobNotFound))
		Expect(store.Len()).To(Equal(0))
		Expect(service.statusHits.Load()).To(BeEquivalentTo(1))
		Expect(service.downloadHits.Load()).To(BeEquivalentTo(1))
	})

	It("reports both local reasons for an unpaid report still in the lab", func() {
		decision := controller.IsActionAllowed(domain.StatusInLabTesting, &domain.BillingSummary{Amount: 800, PaidAmount: 0})
		Expect(decision.Allowed).To(BeFalse())
		Expect([]string{decision.Message()}).To(Equal([]string{"Tests not fully completed and Payment not fully completed"}))
		Expect(service.statusHits.Load()).To(BeZero())
		Expect(service.downloadHits.Load()).To(BeZero())
	})

	It("surfaces the service message and never downloads when the report is unavailable", func() {
		res, err := controller.ViewReport(context.Background(), report.ActionRequest{
			RequestID: "pending",
			Status:    domain.StatusReportGenerated,
			Billing:   &domain.BillingSummary{Amount: 400, PaidAmount: 400},
		})
		Expect(err).To(MatchError(domain.ErrNotAvailable))
		Expect(res.UserMessage).To(Equal("Report is awaiting sign-off"))
		Expect(service.downloadHits.Load()).To(BeZero())
		Expect(tabs.opened).To(BeEmpty())
	})

	It("requires authentication before touching the network", func() {
		token = ""
		controller = newController()

		res, err := controller.ViewReport(context.Background(), report.ActionRequest{
			RequestID: "abc123",
			Status:    domain.StatusCompleted,
			Billing:   &domain.BillingSummary{Amount: 10, PaidAmount: 10},
		})
		Expect(err).To(MatchError(domain.ErrAuthRequired))
		Expect(res.ErrorKind).To(Equal(domain.KindAuthRequired))
		Expect(service.statusHits.Load()).To(BeZero())
		Expect(service.downloadHits.Load()).To(BeZero())
	})
})
