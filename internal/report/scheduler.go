package report

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/soyeahso/attendant/internal/logging"
)

// Scheduler runs digest delivery on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	spec string
	log  *logging.Logger
}

// NewScheduler parses spec (standard five-field cron, or descriptors such
// as "@daily") and registers job.
func NewScheduler(spec string, job func(ctx context.Context), log *logging.Logger) (*Scheduler, error) {
	c := cron.New()
	l := log.Sub("report")
	if _, err := c.AddFunc(spec, func() {
		l.Debug().Str("schedule", spec).Msg("scheduled delivery")
		job(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, spec: spec, log: l}, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Str("schedule", s.spec).Msg("report scheduler started")
}

// Stop halts the schedule and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next is the next planned delivery, or zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
