package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lab-report-access/internal/domain"
	"lab-report-access/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "reportctl",
		Short:        "View, download and print lab test reports",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(gateCmd())
	rootCmd.AddCommand(availabilityCmd())
	rootCmd.AddCommand(actionCmd(domain.ActionView, "Open the report in the default viewer"))
	rootCmd.AddCommand(actionCmd(domain.ActionDownload, "Save the report as a PDF file"))
	rootCmd.AddCommand(actionCmd(domain.ActionPrint, "Send the report to the system print spooler"))
	return rootCmd
}

func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "current workflow status of the test request")
	cmd.Flags().Float64("amount", 0, "billed amount")
	cmd.Flags().Float64("paid-amount", 0, "amount paid so far")
}

// actionRequestFromFlags leaves Billing nil unless an amount flag was given,
// matching a request with no billing record.
func actionRequestFromFlags(cmd *cobra.Command, requestID string) (report.ActionRequest, error) {
	status, _ := cmd.Flags().GetString("status")
	if status == "" {
		return report.ActionRequest{}, fmt.Errorf("--status is required")
	}
	req := report.ActionRequest{RequestID: requestID, Status: domain.WorkflowStatus(status)}
	if cmd.Flags().Changed("amount") || cmd.Flags().Changed("paid-amount") {
		amount, _ := cmd.Flags().GetFloat64("amount")
		paid, _ := cmd.Flags().GetFloat64("paid-amount")
		req.Billing = &domain.BillingSummary{Amount: amount, PaidAmount: paid}
	}
	return req, nil
}

func gateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate <requestId>",
		Short: "Show whether report actions are enabled, without contacting the report service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := actionRequestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			audience, _ := cmd.Flags().GetString("audience")

			decision := domain.IsActionAllowed(req.Status, req.Billing)
			reasons := decision.Reasons
			if reasons == nil {
				reasons = []string{}
			}
			return printJSON(cmd, map[string]any{
				"requestId":     req.RequestID,
				"allowed":       decision.Allowed,
				"reasons":       reasons,
				"message":       decision.Message(),
				"displayStatus": domain.DisplayStatus(req.Status, domain.ParseAudience(audience)),
			})
		},
	}
	addContextFlags(cmd)
	cmd.Flags().String("audience", "", "viewer audience (superadmin, center, lab, accountant, patient)")
	return cmd
}

func availabilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "availability <requestId>",
		Short: "Ask the report service whether the report can be retrieved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			availability, err := s.reports.FetchAvailability(cmd.Context(), args[0])
			if domain.KindOf(err) == domain.KindAuthRequired {
				return errors.New(domain.UserMessage(err))
			}
			return printJSON(cmd, availability)
		},
	}
}

func actionCmd(action domain.Action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(action) + " <requestId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := actionRequestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")

			s, err := newSession(sessionOptions{
				serveBlobs:  action != domain.ActionDownload,
				downloadDir: dir,
			})
			if err != nil {
				return err
			}
			defer s.Close()

			var res report.ActionResult
			switch action {
			case domain.ActionView:
				res, err = s.controller.ViewReport(cmd.Context(), req)
			case domain.ActionDownload:
				res, err = s.controller.DownloadReport(cmd.Context(), req)
			case domain.ActionPrint:
				res, err = s.controller.PrintReport(cmd.Context(), req)
			}
			if err != nil {
				return errors.New(res.UserMessage)
			}
			return printJSON(cmd, res)
		},
	}
	addContextFlags(cmd)
	if action == domain.ActionDownload {
		cmd.Flags().String("dir", "", "directory to save the report in (defaults to DOWNLOAD_DIR)")
	}
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
