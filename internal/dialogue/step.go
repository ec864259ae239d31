package dialogue

import (
	"context"
	"errors"

	"github.com/soyeahso/attendant/internal/domain"
)

// Lookups resolves the lookup effects a transition may request.
type Lookups interface {
	FindRegistration(ctx context.Context, registrationID string) (map[string]string, bool, error)
	FindTicket(ctx context.Context, code string) (*domain.CompletionRecord, bool, error)
}

// Outcome is everything the driver must do after one inbound message.
type Outcome struct {
	From     domain.State
	To       domain.State
	Outbound []string
	Effects  []Effect // only Complete and Handoff; lookups are resolved
	Invalid  bool
}

// Step runs one transition against sess, resolving lookup effects through
// lk, and leaves sess in its final state. Lookup errors are answered with a
// retry message and returned for logging; sess is still valid.
func (m *Machine) Step(ctx context.Context, sess *domain.Session, text string, lk Lookups) (Outcome, error) {
	out := Outcome{From: sess.State}
	res := m.Transition(*sess, text)

	var errs []error
	for {
		res.ApplyTo(sess, m.now())
		out.Outbound = append(out.Outbound, res.Outbound...)
		out.Invalid = out.Invalid || res.Invalid

		var follow *Result
		for _, e := range res.Effects {
			switch e := e.(type) {
			case LookupRegistration:
				profile, found, err := lk.FindRegistration(ctx, e.RegistrationID)
				var r Result
				if err != nil {
					errs = append(errs, err)
					r = m.RegistryUnavailable(*sess)
				} else {
					r = m.ApplyRegistration(*sess, profile, found)
				}
				follow = &r
			case LookupTicket:
				rec, found, err := lk.FindTicket(ctx, e.Code)
				if err != nil {
					errs = append(errs, err)
					found = false
				}
				r := m.ApplyTicket(*sess, rec, found)
				follow = &r
			default:
				out.Effects = append(out.Effects, e)
			}
		}
		if follow == nil {
			break
		}
		res = *follow
	}

	out.To = sess.State
	return out, errors.Join(errs...)
}
