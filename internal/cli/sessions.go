package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/soyeahso/attendant/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored dialogue sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	return cmd
}

func openStore() (store.Store, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return store.New(cfg.Session, log)
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := openStore()
			if err != nil {
				return err
			}
			defer closer.Close()
			return listSessions(context.Background(), st, cmd.OutOrStdout())
		},
	}
}

func listSessions(ctx context.Context, st store.Store, out io.Writer) error {
	list, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tNAME\tTICKET\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.State, dash(s.Fields.Name), dash(s.Fields.TicketCode),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := openStore()
			if err != nil {
				return err
			}
			defer closer.Close()
			return showSession(context.Background(), st, args[0], cmd.OutOrStdout())
		},
	}
}

func showSession(ctx context.Context, st store.Store, id string, out io.Writer) error {
	sess, ok, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sess)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
