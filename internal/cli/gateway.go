package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/attendant/internal/channel/irc"
	"github.com/soyeahso/attendant/internal/channel/webchat"
	"github.com/soyeahso/attendant/internal/gateway"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the attendant service",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the channels, the dialogue router and the admin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if err := validate(cfg); err != nil {
				return err
			}

			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			svcLog, logCloser, err := logging.Open(logging.Options{
				Level:        level,
				ConsoleStyle: cfg.Logging.ConsoleStyle,
				File:         cfg.Logging.File,
			})
			if err != nil {
				return fmt.Errorf("opening log: %w", err)
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := openService(ctx, cfg, svcLog)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.enableReports(ctx); err != nil {
				return fmt.Errorf("configuring report delivery: %w", err)
			}
			if err := svc.plugins.InitAll(ctx); err != nil {
				return fmt.Errorf("initializing plugins: %w", err)
			}

			opts := []gateway.ServerOption{
				gateway.WithSessions(svc.store),
				gateway.WithReports(svc.reports),
				gateway.WithChannels(svc.channels),
				gateway.WithHooks(svc.hooks),
				gateway.WithMetrics(svc.metrics),
			}

			if cfg.Channels.IRC != nil {
				svc.channels.Register(irc.New(*cfg.Channels.IRC, svcLog))
			}
			if wc := cfg.Channels.Webchat; wc != nil && wc.Enabled {
				ch := webchat.New(*wc, cfg.Gateway.AllowedOrigins, svcLog)
				svc.channels.Register(ch)
				opts = append(opts, gateway.WithMount(ch.Path(), ch))
			}
			if svc.channels.Count() == 0 {
				svcLog.Warn().Msg("no channels configured, only the admin surface will run")
			}

			router := svc.router()
			router.Wire(ctx)
			opts = append(opts, gateway.WithActivity(router.Gate()))

			srv := gateway.New(cfg, svcLog, opts...)

			g, gctx := errgroup.WithContext(ctx)
			if err := svc.channels.StartAll(gctx); err != nil {
				return fmt.Errorf("starting channels: %w", err)
			}
			g.Go(func() error {
				return srv.Start(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				svc.channels.StopAll(context.Background())
				svc.channels.Wait()
				router.Stop()
				return nil
			})

			svcLog.Info().
				Int("channels", svc.channels.Count()).
				Strs("plugins", svc.plugins.Started()).
				Msg("attendant running")

			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}
