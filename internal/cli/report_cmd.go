package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect or deliver the completion log",
	}

	cmd.AddCommand(newReportShowCmd())
	cmd.AddCommand(newReportSendCmd())
	return cmd
}

func newReportShowCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print logged completions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lg, err := report.OpenLog(cfg.Report.Path, log)
			if err != nil {
				return err
			}
			return showReport(lg, code, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "only the latest record for this ticket code")
	return cmd
}

func showReport(lg *report.Log, code string, out io.Writer) error {
	var records []domain.CompletionRecord
	if code != "" {
		rec, ok, err := lg.Find(code)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("ticket %q not found in %s", code, lg.Path())
		}
		records = append(records, *rec)
	} else {
		var err error
		if records, err = lg.Records(); err != nil {
			return err
		}
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No completions in %s.\n", lg.Path())
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKET\tSTATUS\tNAME\tREGISTRATION\tOPTION\tRATING\tWHEN")
	for _, r := range records {
		rating := "-"
		if r.Rating != nil {
			rating = strconv.Itoa(*r.Rating)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TicketCode, r.Status, dash(r.Name), dash(r.RegistrationID), dash(r.Option),
			rating, r.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newReportSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Deliver the completion log through the configured notifier now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			lg, err := report.OpenLog(cfg.Report.Path, log)
			if err != nil {
				return err
			}
			snap, err := lg.Snapshot()
			if err != nil {
				return err
			}
			if snap.Empty() {
				return fmt.Errorf("no completions recorded in %s", cfg.Report.Path)
			}

			n, err := report.NewNotifier(ctx, cfg.Report, log)
			if err != nil {
				return err
			}
			if err := n.Notify(ctx, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Delivered %s via %s\n", cfg.Report.Path, n.Name())
			return nil
		},
	}
}
