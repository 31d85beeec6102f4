package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DanielPopoola/checkout-sessions/internal/scenario"
)

func newPayCmd() *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Submit the scenario's payments until the amount is paid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, &flags)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			snapshot, err := a.snapshot(ctx, &flags)
			if err != nil {
				return err
			}
			report, err := a.runner.Run(ctx, snapshot, a.scenario.Payments)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func printReport(out io.Writer, report *scenario.Report) {
	fmt.Fprintf(out, "session %s\n", report.SessionID)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tMETHOD\tACTION\tRESULT\tREMAINING")
	for i, o := range report.Outcomes {
		result := string(o.ResultCode)
		if o.Err != nil {
			result = "error: " + o.Err.Error()
		}
		remaining := "-"
		if o.Remaining != nil {
			remaining = o.Remaining.Format()
		}
		action := string(o.Action)
		if action == "" {
			action = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, o.Method, action, result, remaining)
	}
	_ = w.Flush()

	switch {
	case report.Final != nil:
		fmt.Fprintf(out, "checkout finished: %s (session result %s)\n", report.Final.ResultCode, report.Final.SessionResult)
	default:
		fmt.Fprintln(out, "checkout did not finish")
	}
	if report.OrderCancelled {
		fmt.Fprintln(out, "unfinished partial payment order cancelled")
	}
}
