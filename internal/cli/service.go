package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/soyeahso/attendant/internal/channel"
	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/dialogue"
	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/idle"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/metrics"
	"github.com/soyeahso/attendant/internal/plugin"
	"github.com/soyeahso/attendant/internal/registry"
	"github.com/soyeahso/attendant/internal/report"
	"github.com/soyeahso/attendant/internal/routing"
	"github.com/soyeahso/attendant/internal/store"
)

// loadConfig reads the config file, fills file locations under the
// attendant home and validates the result.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	paths.ApplyTo(&cfg)
	return cfg, validate(cfg)
}

func validate(cfg config.Config) error {
	issues := config.Validate(&cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}

func newMachine(cfg config.Config) *dialogue.Machine {
	return dialogue.New(dialogue.Config{
		Locale:           cfg.Dialogue.Locale,
		InvalidThreshold: cfg.Dialogue.InvalidThreshold,
		TicketPrefix:     cfg.Dialogue.TicketPrefix,
		AssistantName:    cfg.Dialogue.AssistantName,
	})
}

func idleConfig(cfg config.IdleConfig) idle.Config {
	return idle.Config{
		Short:      cfg.ShortIdle(),
		Long:       cfg.LongIdle(),
		ShortAfter: cfg.ShortAfterInvalid,
	}
}

// service bundles the collaborators shared by gateway run and simulate.
type service struct {
	cfg      config.Config
	log      *logging.Logger
	hooks    *hooks.Manager
	metrics  *metrics.Metrics
	store    store.Store
	registry registry.Source
	reports  *report.Log
	sink     *report.Sink
	channels *channel.Registry
	plugins  *plugin.Registry
	closers  []io.Closer
}

func openService(ctx context.Context, cfg config.Config, log *logging.Logger) (_ *service, err error) {
	s := &service{
		cfg:      cfg,
		log:      log,
		hooks:    hooks.NewManager(log),
		channels: channel.NewRegistry(log),
	}
	s.plugins = plugin.NewRegistry(s.hooks, log)
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	st, closer, err := store.New(cfg.Session, log)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	s.store = st
	s.closers = append(s.closers, closer)

	src, closer, err := registry.New(ctx, cfg.Registry, log)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	s.registry = src
	s.closers = append(s.closers, closer)

	s.reports, err = report.OpenLog(cfg.Report.Path, log)
	if err != nil {
		return nil, fmt.Errorf("opening completion log: %w", err)
	}
	s.sink = report.NewSink(s.reports, s.hooks, log)

	log.Info().
		Str("store", cfg.Session.Store).
		Str("registry", cfg.Registry.Source).
		Str("report", s.reports.Path()).
		Msg("service opened")
	return s, nil
}

// enableReports registers the report plugin unless delivery is disabled.
func (s *service) enableReports(ctx context.Context) error {
	if s.cfg.Report.Notifier == "" || s.cfg.Report.Notifier == "none" {
		return nil
	}
	n, err := report.NewNotifier(ctx, s.cfg.Report, s.log)
	if err != nil {
		return err
	}
	return s.plugins.Register(report.NewPlugin(n, s.reports, s.cfg.Report.Schedule))
}

func (s *service) router() *routing.Router {
	return routing.NewRouter(routing.Deps{
		Channels:    s.channels,
		Store:       s.store,
		Machine:     newMachine(s.cfg),
		Registry:    s.registry,
		Tickets:     s.sink,
		Sink:        s.sink,
		Hooks:       s.hooks,
		Metrics:     s.metrics,
		Idle:        idleConfig(s.cfg.Idle),
		GroupNotice: s.cfg.Channels.GroupNotice,
	}, s.log)
}

// Close releases plugins, then the store and registry in reverse order.
func (s *service) Close() error {
	s.plugins.CloseAll()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
