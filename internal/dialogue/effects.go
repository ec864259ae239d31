package dialogue

import (
	"time"

	"github.com/soyeahso/attendant/internal/domain"
)

// Effect is a side effect requested by a transition. The engine never
// performs I/O itself; the driver executes effects in order.
type Effect interface {
	effect()
}

// LookupRegistration asks the driver to resolve a registration id in the
// registry and feed the outcome back through ApplyRegistration.
type LookupRegistration struct {
	RegistrationID string
}

// LookupTicket asks the driver to find a completion record by ticket code
// and feed the outcome back through ApplyTicket.
type LookupTicket struct {
	Code string
}

// Complete hands a finished intake to the completion sink.
type Complete struct {
	Record domain.CompletionRecord
}

// Handoff signals that the correspondent accepted a human agent.
type Handoff struct {
	CorrespondentID string
	ResumeState     domain.State
	Fields          domain.Fields
}

func (LookupRegistration) effect() {}
func (LookupTicket) effect()       {}
func (Complete) effect()           {}
func (Handoff) effect()            {}

// Result is the outcome of one pure transition.
type Result struct {
	Next     domain.State
	Fields   domain.Fields
	Outbound []string
	Effects  []Effect
	Invalid  bool // the invalid-input path was taken
}

// ApplyTo writes the result into sess.
func (r Result) ApplyTo(sess *domain.Session, now time.Time) {
	sess.State = r.Next
	sess.Fields = r.Fields
	sess.UpdatedAt = now
}
