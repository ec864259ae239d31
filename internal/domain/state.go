package domain

import "fmt"

// State is the dialogue stage a session is waiting in.
type State string

const (
	StateInitial                  State = "initial"
	StateNameCollection           State = "name_collection"
	StateRegistrationIDCollection State = "registration_id_collection"
	StateOptionSelection          State = "option_selection"
	StateInfoLookup               State = "info_lookup"
	StateBenefitSelection         State = "benefit_selection"
	StateMoreInfoOrFinish         State = "more_info_or_finish"
	StateDetailCollection         State = "detail_collection"
	StateRatingPrompt             State = "rating_prompt"
	StateRatingValueCollection    State = "rating_value_collection"
	StateProtocolStatusLookup     State = "protocol_status_lookup"
	StateCancelConfirmation       State = "cancel_confirmation"
	StateHumanHandoff             State = "human_handoff"
)

// AllStates lists every defined state in dialogue order.
var AllStates = []State{
	StateInitial,
	StateNameCollection,
	StateRegistrationIDCollection,
	StateOptionSelection,
	StateInfoLookup,
	StateBenefitSelection,
	StateMoreInfoOrFinish,
	StateDetailCollection,
	StateRatingPrompt,
	StateRatingValueCollection,
	StateProtocolStatusLookup,
	StateCancelConfirmation,
	StateHumanHandoff,
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	for _, v := range AllStates {
		if s == v {
			return true
		}
	}
	return false
}

// ParseState converts a stored string into a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown dialogue state %q", s)
	}
	return st, nil
}

// RatingStage reports whether the state belongs to the rating part of the
// dialogue, where a ticket code has already been assigned.
func (s State) RatingStage() bool {
	return s == StateRatingPrompt || s == StateRatingValueCollection
}

// Intake reports whether the state is part of an intake in progress, i.e.
// the global cancel keyword applies.
func (s State) Intake() bool {
	switch s {
	case StateInitial, StateCancelConfirmation, StateHumanHandoff, StateProtocolStatusLookup:
		return false
	}
	return true
}
