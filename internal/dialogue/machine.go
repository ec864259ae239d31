// Package dialogue implements the intake state machine. Transitions are pure
// functions of (session, input); I/O is requested through effects.
package dialogue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/ticket"
)

// Config tunes the machine.
type Config struct {
	Locale           string
	InvalidThreshold int
	TicketPrefix     string
	AssistantName    string
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock replaces time.Now, for greetings and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithTicketGenerator replaces the random ticket code source.
func WithTicketGenerator(gen func() string) Option {
	return func(m *Machine) { m.newTicket = gen }
}

// Machine computes dialogue transitions.
type Machine struct {
	cfg       Config
	now       func() time.Time
	newTicket func() string
}

// New creates a machine, filling unset config with defaults.
func New(cfg Config, opts ...Option) *Machine {
	if _, ok := catalogs[cfg.Locale]; !ok {
		cfg.Locale = "pt"
	}
	if cfg.InvalidThreshold <= 0 {
		cfg.InvalidThreshold = 3
	}
	cfg.TicketPrefix = strings.ToUpper(cfg.TicketPrefix)
	if cfg.TicketPrefix == "" {
		cfg.TicketPrefix = ticket.DefaultPrefix
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "IADP"
	}
	m := &Machine{cfg: cfg, now: time.Now}
	m.newTicket = ticket.Generator(cfg.TicketPrefix)
	for _, o := range opts {
		o(m)
	}
	return m
}

// Config returns the effective configuration.
func (m *Machine) Config() Config { return m.cfg }

// Now returns the machine clock's current time.
func (m *Machine) Now() time.Time { return m.now() }

// NewSession creates a session in the configured locale.
func (m *Machine) NewSession(id string) *domain.Session {
	return domain.NewSession(id, m.cfg.Locale, m.now())
}

// Nudge is the idle reminder for a session's language.
func (m *Machine) Nudge(lang string) string { return m.catalog(lang).nudge }

// GroupNotice is the reply to messages sent in group context.
func (m *Machine) GroupNotice(lang string) string { return m.catalog(lang).groupNotice }

// Apology is sent when processing an event failed unexpectedly.
func (m *Machine) Apology(lang string) string { return m.catalog(lang).apology }

func (m *Machine) catalog(lang string) *catalog {
	if lang == "" {
		lang = m.cfg.Locale
	}
	return lookupCatalog(lang)
}

// Transition computes the next state for one inbound text.
func (m *Machine) Transition(sess domain.Session, text string) Result {
	s := m.begin(sess)
	input := strings.TrimSpace(text)
	kw := fold(input)
	state := s.state

	if state != domain.StateInitial && isHelp(kw) {
		s.say(s.prompt(state)...)
		return s.stay()
	}
	if state.Intake() && !state.RatingStage() && isCancel(kw) {
		s.f.ResumeState = state
		s.say(s.c.cancelAsk)
		return s.done(domain.StateCancelConfirmation)
	}

	switch state {
	case domain.StateInitial:
		return s.initial(kw)
	case domain.StateNameCollection:
		if input == "" {
			return s.reject()
		}
		s.f.Name = input
		s.say(fmt.Sprintf(s.c.askRegID, firstName(input)))
		return s.done(domain.StateRegistrationIDCollection)
	case domain.StateRegistrationIDCollection:
		if !registrationPattern.MatchString(input) {
			return s.reject()
		}
		s.f.RegistrationID = input
		s.effects = append(s.effects, LookupRegistration{RegistrationID: input})
		return s.pending()
	case domain.StateOptionSelection:
		return s.option(kw)
	case domain.StateInfoLookup:
		keys := profileKeys(s.f.Profile)
		n, err := strconv.Atoi(kw)
		if err != nil || n < 1 || n > len(keys) {
			return s.reject()
		}
		key := keys[n-1]
		s.say(fmt.Sprintf(s.c.infoValue, key, s.f.Profile[key]), s.c.moreInfo)
		if s.f.Details == "" {
			s.f.Details = s.c.consultPrefix + ": " + key
		} else {
			s.f.Details += ", " + key
		}
		return s.done(domain.StateMoreInfoOrFinish)
	case domain.StateMoreInfoOrFinish:
		switch kw {
		case "1":
			s.say(s.prompt(domain.StateOptionSelection)...)
			return s.done(domain.StateOptionSelection)
		case "2":
			return s.enterRating()
		}
		return s.reject()
	case domain.StateBenefitSelection:
		n, err := strconv.Atoi(kw)
		if err != nil || n < 1 || n > len(s.c.benefits) {
			return s.reject()
		}
		benefit := s.c.benefits[n-1]
		s.f.SelectedOption = s.c.optBenefits + " - " + benefit
		s.say(fmt.Sprintf(s.c.benefitChosen, benefit))
		return s.done(domain.StateDetailCollection)
	case domain.StateDetailCollection:
		if input == "" {
			return s.reject()
		}
		s.f.Details = input
		return s.enterRating()
	case domain.StateRatingPrompt:
		switch {
		case isYes(kw):
			s.say(s.c.askRating)
			return s.done(domain.StateRatingValueCollection)
		case isNo(kw):
			return s.complete()
		}
		return s.reject()
	case domain.StateRatingValueCollection:
		n, err := strconv.Atoi(kw)
		if err != nil {
			return s.reject()
		}
		if n < 1 || n > 5 {
			s.say(s.c.ratingRange)
			return s.stay()
		}
		s.f.Rating = &n
		return s.complete()
	case domain.StateProtocolStatusLookup:
		if isBack(kw) {
			s.say(s.c.protocolBack, s.c.mainMenu)
			return s.done(domain.StateInitial)
		}
		code := ticket.Normalize(input)
		if !ticket.Valid(m.cfg.TicketPrefix, code) {
			return s.reject()
		}
		s.effects = append(s.effects, LookupTicket{Code: code})
		return s.pending()
	case domain.StateCancelConfirmation:
		return s.cancelConfirmation(kw)
	case domain.StateHumanHandoff:
		return s.handoff(kw)
	}
	return s.reject()
}

// ApplyRegistration continues a registration lookup.
func (m *Machine) ApplyRegistration(sess domain.Session, profile map[string]string, found bool) Result {
	s := m.begin(sess)
	if s.state != domain.StateRegistrationIDCollection {
		return s.stay()
	}
	if !found {
		s.f.RegistrationID = ""
		return s.reject(s.c.regNotFound)
	}
	s.f.Profile = make(map[string]string, len(profile))
	for k, v := range profile {
		s.f.Profile[k] = v
	}
	s.say(s.prompt(domain.StateOptionSelection)...)
	return s.done(domain.StateOptionSelection)
}

// RegistryUnavailable answers a registration lookup that failed with an
// error. It does not count against the correspondent.
func (m *Machine) RegistryUnavailable(sess domain.Session) Result {
	s := m.begin(sess)
	s.f.RegistrationID = ""
	s.say(s.c.regUnavail)
	return s.stay()
}

// ApplyTicket continues a protocol status lookup.
func (m *Machine) ApplyTicket(sess domain.Session, rec *domain.CompletionRecord, found bool) Result {
	s := m.begin(sess)
	if s.state != domain.StateProtocolStatusLookup {
		return s.stay()
	}
	if !found || rec == nil {
		return s.reject()
	}
	status := s.c.statusDone
	if rec.Status == domain.StatusCancelled {
		status = s.c.statusCancel
	}
	s.say(
		fmt.Sprintf(s.c.protocolFound, rec.TicketCode, status, rec.Timestamp.Format("02/01/2006 15:04"), s.c.orNA(rec.Option)),
		s.c.mainMenu,
	)
	return s.done(domain.StateInitial)
}

// step accumulates one transition's output over a private copy of the fields.
type step struct {
	m       *Machine
	id      string
	state   domain.State
	f       domain.Fields
	c       *catalog
	out     []string
	effects []Effect
	invalid bool
}

func (m *Machine) begin(sess domain.Session) *step {
	state := sess.State
	if !state.Valid() {
		state = domain.StateInitial
	}
	return &step{
		m:     m,
		id:    sess.ID,
		state: state,
		f:     sess.Fields.Clone(),
		c:     m.catalog(sess.Fields.Language),
	}
}

func (s *step) say(msgs ...string) {
	s.out = append(s.out, msgs...)
}

// done records a successful transition and resets the invalid counter.
func (s *step) done(next domain.State) Result {
	s.f.InvalidResponseCount = 0
	return s.finish(next)
}

// stay keeps the state and counter unchanged.
func (s *step) stay() Result {
	return s.finish(s.state)
}

// pending waits for an effect's outcome without judging the input yet.
func (s *step) pending() Result {
	return s.finish(s.state)
}

// reject is the single invalid-input path: count, escalate at the
// threshold, otherwise re-show contextual help.
func (s *step) reject(help ...string) Result {
	s.invalid = true
	s.f.InvalidResponseCount++

	if s.f.InvalidResponseCount >= s.m.cfg.InvalidThreshold && s.state != domain.StateHumanHandoff {
		if s.state != domain.StateCancelConfirmation || s.f.ResumeState == "" {
			s.f.ResumeState = s.state
		}
		s.say(s.c.handoffAsk)
		return s.finish(domain.StateHumanHandoff)
	}

	if len(help) == 0 {
		help = s.help(s.state)
	}
	s.say(help...)
	return s.finish(s.state)
}

// finish enforces that a ticket code exists exactly while rating, including
// a handoff detour that will resume rating with the code already announced.
func (s *step) finish(next domain.State) Result {
	switch {
	case next.RatingStage():
		s.ensureTicket()
	case next == domain.StateHumanHandoff && s.f.ResumeState.RatingStage():
	default:
		s.f.TicketCode = ""
	}
	return Result{
		Next:     next,
		Fields:   s.f,
		Outbound: s.out,
		Effects:  s.effects,
		Invalid:  s.invalid,
	}
}

func (s *step) ensureTicket() string {
	if s.f.TicketCode == "" {
		s.f.TicketCode = s.m.newTicket()
	}
	return s.f.TicketCode
}

func (s *step) initial(kw string) Result {
	c := s.c
	switch kw {
	case "1":
		if !s.f.Greeted {
			s.greet()
		}
		s.say(c.askName)
		return s.done(domain.StateNameCollection)
	case "2":
		s.f.Greeted = true
		s.say(c.askProtocol)
		return s.done(domain.StateProtocolStatusLookup)
	case "3":
		s.f.Greeted = true
		s.f.ResumeState = domain.StateInitial
		s.say(c.cancelAsk)
		return s.done(domain.StateCancelConfirmation)
	case "4":
		s.f.Greeted = true
		s.f.ResumeState = domain.StateInitial
		s.say(c.handoffOffer)
		return s.done(domain.StateHumanHandoff)
	case "5", "ajuda", "help":
		s.f.Greeted = true
		s.say(c.helpMenu)
		return s.stay()
	case "pt", "en":
		s.f.Language = kw
		s.f.Greeted = true
		s.c = lookupCatalog(kw)
		s.say(s.c.langSwitched, s.c.mainMenu)
		return s.done(domain.StateInitial)
	}
	if !s.f.Greeted {
		s.greet()
		return s.done(domain.StateInitial)
	}
	return s.reject()
}

func (s *step) greet() {
	s.f.Greeted = true
	s.say(s.c.greetingFor(s.m.now().Hour(), s.m.cfg.AssistantName) + "\n\n" + s.c.mainMenu)
}

func (s *step) option(kw string) Result {
	c := s.c
	switch kw {
	case "1":
		if len(s.f.Profile) == 0 {
			s.say(c.infoEmpty)
			s.say(s.prompt(domain.StateOptionSelection)...)
			return s.done(domain.StateOptionSelection)
		}
		s.f.SelectedOption = c.optConsult
		s.f.Details = ""
		s.say(s.prompt(domain.StateInfoLookup)...)
		return s.done(domain.StateInfoLookup)
	case "2":
		s.f.SelectedOption = c.optBenefits
		s.say(c.benefitMenu)
		return s.done(domain.StateBenefitSelection)
	case "3":
		s.f.SelectedOption = c.optFeedback
		s.f.Cancelling = false
		s.say(c.askFeedback)
		return s.done(domain.StateDetailCollection)
	case "4":
		s.f.SelectedOption = c.optCancel
		s.f.Cancelling = true
		s.say(c.askCancelWhy)
		return s.done(domain.StateDetailCollection)
	}
	return s.reject()
}

func (s *step) enterRating() Result {
	s.say(s.ratingPrompt())
	return s.done(domain.StateRatingPrompt)
}

func (s *step) ratingPrompt() string {
	code := s.ensureTicket()
	if s.f.Cancelling {
		return fmt.Sprintf(s.c.ratingCancel, code)
	}
	return fmt.Sprintf(s.c.ratingPrompt, code)
}

// complete emits the summary and the completion record, then starts over.
func (s *step) complete() Result {
	rec := s.record()
	rating := s.c.notAvailable
	thanks := s.c.thanksPlain
	if rec.Rating != nil {
		rating = strconv.Itoa(*rec.Rating)
		thanks = s.c.thanksRated
	}
	s.say(
		fmt.Sprintf(s.c.summary,
			s.c.orNA(rec.Name), s.c.orNA(rec.RegistrationID), s.c.orNA(rec.Option),
			s.c.orNA(rec.Details), rating, rec.TicketCode),
		thanks,
	)
	s.effects = append(s.effects, Complete{Record: rec})
	s.f = domain.Fields{Language: s.f.Language}
	return s.done(domain.StateInitial)
}

func (s *step) record() domain.CompletionRecord {
	status := domain.StatusCompleted
	if s.f.Cancelling {
		status = domain.StatusCancelled
	}
	var rating *int
	if s.f.Rating != nil {
		r := *s.f.Rating
		rating = &r
	}
	return domain.CompletionRecord{
		CorrespondentID: s.id,
		Name:            s.f.Name,
		RegistrationID:  s.f.RegistrationID,
		Option:          s.f.SelectedOption,
		Details:         s.f.Details,
		Rating:          rating,
		Timestamp:       s.m.now(),
		TicketCode:      s.ensureTicket(),
		Status:          status,
	}
}

func (s *step) cancelConfirmation(kw string) Result {
	switch {
	case isYes(kw):
		if s.f.Name == "" {
			s.say(s.c.cancelNothing)
			s.f = domain.Fields{Language: s.f.Language}
			return s.done(domain.StateInitial)
		}
		s.f.Cancelling = true
		rec := s.record()
		s.say(s.c.cancelledDone)
		s.effects = append(s.effects, Complete{Record: rec})
		s.f = domain.Fields{Language: s.f.Language}
		return s.done(domain.StateInitial)
	case isNo(kw):
		return s.resume(s.c.cancelKept)
	}
	return s.reject()
}

func (s *step) handoff(kw string) Result {
	switch {
	case isYes(kw):
		s.say(s.c.handoffAck)
		snapshot := s.f.Clone()
		snapshot.TicketCode = ""
		s.effects = append(s.effects, Handoff{
			CorrespondentID: s.id,
			ResumeState:     s.f.ResumeState,
			Fields:          snapshot,
		})
		s.f = domain.Fields{Language: s.f.Language}
		return s.done(domain.StateInitial)
	case isNo(kw):
		return s.resume(s.c.handoffDecl)
	}
	return s.reject()
}

// resume returns to the state saved before a detour, re-asking its question.
func (s *step) resume(ack string) Result {
	target := s.f.ResumeState
	if !target.Valid() || target == domain.StateCancelConfirmation || target == domain.StateHumanHandoff {
		target = domain.StateInitial
	}
	s.f.ResumeState = ""
	s.say(ack)
	s.say(s.prompt(target)...)
	return s.done(target)
}

// prompt is the question a state is waiting on.
func (s *step) prompt(state domain.State) []string {
	c := s.c
	switch state {
	case domain.StateInitial:
		return []string{c.mainMenu}
	case domain.StateNameCollection:
		return []string{c.askName}
	case domain.StateRegistrationIDCollection:
		return []string{fmt.Sprintf(c.askRegID, firstName(s.f.Name))}
	case domain.StateOptionSelection:
		return []string{fmt.Sprintf(c.optionMenu, firstName(s.f.Name))}
	case domain.StateInfoLookup:
		keys := profileKeys(s.f.Profile)
		if len(keys) == 0 {
			return []string{c.infoEmpty}
		}
		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = fmt.Sprintf("%d - %s", i+1, k)
		}
		return []string{fmt.Sprintf(c.infoList, strings.Join(lines, "\n"))}
	case domain.StateBenefitSelection:
		return []string{c.benefitMenu}
	case domain.StateMoreInfoOrFinish:
		return []string{c.moreInfo}
	case domain.StateDetailCollection:
		switch {
		case s.f.Cancelling:
			return []string{c.askCancelWhy}
		case s.f.SelectedOption == c.optFeedback:
			return []string{c.askFeedback}
		}
		return []string{c.askDetails}
	case domain.StateRatingPrompt:
		return []string{s.ratingPrompt()}
	case domain.StateRatingValueCollection:
		return []string{c.askRating}
	case domain.StateProtocolStatusLookup:
		return []string{c.askProtocol}
	case domain.StateCancelConfirmation:
		return []string{c.cancelAsk}
	case domain.StateHumanHandoff:
		return []string{c.handoffReask}
	}
	return []string{c.mainMenu}
}

// help is the contextual re-prompt after an invalid answer.
func (s *step) help(state domain.State) []string {
	c := s.c
	switch state {
	case domain.StateInitial:
		return []string{c.helpMenu}
	case domain.StateNameCollection:
		return []string{c.nameEmpty}
	case domain.StateRegistrationIDCollection:
		return []string{c.badRegID}
	case domain.StateOptionSelection, domain.StateInfoLookup,
		domain.StateBenefitSelection, domain.StateMoreInfoOrFinish:
		return append([]string{c.invalidOption}, s.prompt(state)...)
	case domain.StateDetailCollection:
		return []string{c.emptyDetails}
	case domain.StateRatingPrompt:
		return []string{c.ratingYesNo}
	case domain.StateRatingValueCollection:
		return []string{c.ratingRange}
	case domain.StateProtocolStatusLookup:
		return []string{c.protocolMiss}
	}
	return s.prompt(state)
}

func profileKeys(profile map[string]string) []string {
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
