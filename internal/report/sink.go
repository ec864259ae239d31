package report

import (
	"context"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/logging"
)

// Sink receives completion records from the router.
type Sink struct {
	log   *Log
	hooks *hooks.Manager
	l     *logging.Logger
}

// NewSink creates a sink that appends to lg and announces each completion
// on hm.
func NewSink(lg *Log, hm *hooks.Manager, log *logging.Logger) *Sink {
	return &Sink{log: lg, hooks: hm, l: log.Sub("report")}
}

// OnComplete appends rec to the log and emits session_end. The hook runs
// asynchronously so delivery never holds up the caller.
func (s *Sink) OnComplete(ctx context.Context, rec domain.CompletionRecord) error {
	if err := s.log.Append(rec); err != nil {
		s.l.Error().Err(err).Str("ticketCode", rec.TicketCode).Msg("failed to append completion")
		return err
	}
	s.l.Info().
		Str("ticketCode", rec.TicketCode).
		Str("status", string(rec.Status)).
		Str("session", rec.CorrespondentID).
		Msg("completion recorded")

	if s.hooks != nil {
		s.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.SessionEnded{Record: rec})
	}
	return nil
}

// Find looks a ticket code up in the log.
func (s *Sink) Find(code string) (*domain.CompletionRecord, bool, error) {
	return s.log.Find(code)
}
