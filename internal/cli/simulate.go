package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/soyeahso/attendant/internal/channel/console"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		from    string
		persist bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Chat with the attendant from the terminal",
		Long: "Reads correspondent messages from stdin, one per line, and prints the replies.\n" +
			"Sessions and completions are kept in a scratch directory unless --persist is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if !persist {
				dir, err := os.MkdirTemp("", "attendant-simulate-")
				if err != nil {
					return err
				}
				defer os.RemoveAll(dir)
				cfg.Session.Store = "memory"
				cfg.Report.Path = filepath.Join(dir, "atendimentos.csv")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			simLog := log
			if logLevel == "" {
				simLog = logging.New(nil, "warn")
			}
			open := func(ctx context.Context) (*service, error) {
				return openService(ctx, cfg, simLog)
			}
			return simulate(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), from, open)
		},
	}

	cmd.Flags().StringVar(&from, "from", "local", "correspondent address to simulate")
	cmd.Flags().BoolVar(&persist, "persist", false, "use the configured session store and completion log")

	return cmd
}

// simulate runs the dialogue against a console channel until in is exhausted.
func simulate(ctx context.Context, in io.Reader, out io.Writer, from string, open func(context.Context) (*service, error)) error {
	svc, err := open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	ch := console.New(in, out, from, svc.log)
	svc.channels.Register(ch)

	router := svc.router()
	router.Wire(ctx)

	if err := svc.channels.StartAll(ctx); err != nil {
		return err
	}
	svc.channels.Wait()
	router.Stop()

	if ctx.Err() == nil {
		fmt.Fprintf(out, "-- %d message(s) sent, completions in %s\n", ch.Lines(), svc.reports.Path())
	}
	return nil
}
