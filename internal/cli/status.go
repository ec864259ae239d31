package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/report"
	"github.com/soyeahso/attendant/internal/store"
	"github.com/soyeahso/attendant/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show attendant status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "attendant %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:   not found (using defaults)")
			}
			paths.ApplyTo(&cfg)

			printStatus(out, cfg)
			return nil
		},
	}

	return cmd
}

func printStatus(out io.Writer, cfg config.Config) {
	fmt.Fprintf(out, "Gateway:  port=%d bind=%s auth=%s tls=%v\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)
	fmt.Fprintf(out, "Dialogue: locale=%s threshold=%d prefix=%s\n",
		cfg.Dialogue.Locale, cfg.Dialogue.InvalidThreshold, cfg.Dialogue.TicketPrefix)
	fmt.Fprintf(out, "Idle:     short=%s long=%s shortAfter=%d\n",
		cfg.Idle.ShortIdle(), cfg.Idle.LongIdle(), cfg.Idle.ShortAfterInvalid)

	sessions := "?"
	if st, closer, err := store.New(cfg.Session, log); err == nil {
		if list, err := st.List(context.Background()); err == nil {
			sessions = fmt.Sprint(len(list))
		}
		closer.Close()
	}
	fmt.Fprintf(out, "Session:  store=%s path=%s sessions=%s\n", cfg.Session.Store, cfg.Session.Path, sessions)

	if cfg.Registry.Source == "" || cfg.Registry.Source == "none" {
		fmt.Fprintln(out, "Registry: (none, every id accepted)")
	} else {
		fmt.Fprintf(out, "Registry: source=%s path=%s watch=%v\n", cfg.Registry.Source, cfg.Registry.Path, cfg.Registry.Watch)
	}

	completions := "?"
	if lg, err := report.OpenLog(cfg.Report.Path, log); err == nil {
		if recs, err := lg.Records(); err == nil {
			completions = fmt.Sprint(len(recs))
		}
	}
	schedule := cfg.Report.Schedule
	if schedule == "" {
		schedule = "on completion"
	}
	fmt.Fprintf(out, "Report:   path=%s completions=%s notifier=%s schedule=%s\n",
		cfg.Report.Path, completions, cfg.Report.Notifier, schedule)

	if irc := cfg.Channels.IRC; irc != nil {
		fmt.Fprintf(out, "IRC:      server=%s nick=%s channels=%s tls=%v\n",
			irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
	} else {
		fmt.Fprintln(out, "IRC:      (not configured)")
	}
	if wc := cfg.Channels.Webchat; wc != nil && wc.Enabled {
		path := wc.Path
		if path == "" {
			path = "/chat"
		}
		fmt.Fprintf(out, "Webchat:  path=%s\n", path)
	} else {
		fmt.Fprintln(out, "Webchat:  (disabled)")
	}
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "Metrics:  %s\n", cfg.Metrics.Path)
	}

	if issues := config.Validate(&cfg); len(issues) > 0 {
		fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
		}
	}
}
