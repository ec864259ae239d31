package report

import (
	"context"
	"sync"

	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/plugin"
)

// Plugin delivers the completion log, either after every completion or on
// a cron schedule.
type Plugin struct {
	notifier Notifier
	reports  *Log
	schedule string

	mu        sync.Mutex
	hooks     *hooks.Manager
	scheduler *Scheduler
	log       *logging.Logger
	delivered int
}

// NewPlugin creates the report plugin. An empty schedule means delivery
// on every session_end.
func NewPlugin(n Notifier, reports *Log, schedule string) *Plugin {
	return &Plugin{notifier: n, reports: reports, schedule: schedule}
}

func (p *Plugin) ID() string   { return "report" }
func (p *Plugin) Name() string { return "Report delivery (" + p.notifier.Name() + ")" }

// Init subscribes to completions or starts the digest schedule.
func (p *Plugin) Init(_ context.Context, api plugin.API) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = api.Hooks
	p.log = api.Log

	if p.schedule == "" {
		api.Hooks.On(hooks.EventSessionEnd, p.ID(), hooks.Handle(func(ctx context.Context, _ hooks.SessionEnded) error {
			return p.deliver(ctx)
		}))
		return nil
	}

	s, err := NewScheduler(p.schedule, func(ctx context.Context) {
		_ = p.deliver(ctx)
	}, api.Log)
	if err != nil {
		return err
	}
	p.scheduler = s
	s.Start()
	return nil
}

// Close stops delivery.
func (p *Plugin) Close() error {
	p.mu.Lock()
	s, hm := p.scheduler, p.hooks
	p.scheduler = nil
	p.mu.Unlock()

	// A running job takes p.mu in deliver, so stop outside the lock.
	if s != nil {
		s.Stop()
	}
	if hm != nil {
		hm.Off(hooks.EventSessionEnd, p.ID())
	}
	return nil
}

// Delivered counts successful deliveries.
func (p *Plugin) Delivered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

// deliver hands the notifier a snapshot taken under the log's lock, so a
// concurrent Append never shows up as a half-written row.
func (p *Plugin) deliver(ctx context.Context) error {
	snap, err := p.reports.Snapshot()
	if err != nil {
		p.log.Error().Err(err).Msg("report snapshot failed")
		return err
	}
	if snap.Empty() {
		p.log.Debug().Str("path", p.reports.Path()).Msg("no report to deliver yet")
		return nil
	}
	if err := p.notifier.Notify(ctx, snap); err != nil {
		p.log.Error().Err(err).Str("notifier", p.notifier.Name()).Msg("report delivery failed")
		return err
	}
	p.mu.Lock()
	p.delivered++
	p.mu.Unlock()
	return nil
}
