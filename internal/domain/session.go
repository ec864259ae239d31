package domain

import "time"

// CorrespondentKey identifies the remote party of a dialogue.
type CorrespondentKey struct {
	ChannelID string `json:"channelId"`
	Address   string `json:"address"`
}

// String returns the canonical session id for the key.
func (k CorrespondentKey) String() string {
	return k.ChannelID + ":" + k.Address
}

// Fields holds everything collected from the correspondent so far.
type Fields struct {
	Name                 string            `json:"name,omitempty"`
	RegistrationID       string            `json:"registrationId,omitempty"`
	SelectedOption       string            `json:"selectedOption,omitempty"`
	Details              string            `json:"details,omitempty"`
	Rating               *int              `json:"rating,omitempty"`
	TicketCode           string            `json:"ticketCode,omitempty"`
	Language             string            `json:"language,omitempty"`
	InvalidResponseCount int               `json:"invalidResponseCount"`
	Cancelling           bool              `json:"cancelling,omitempty"`
	Greeted              bool              `json:"greeted,omitempty"`
	ResumeState          State             `json:"resumeState,omitempty"`
	Profile              map[string]string `json:"profile,omitempty"`
}

// Clone returns a deep copy so a transition never aliases stored data.
func (f Fields) Clone() Fields {
	out := f
	if f.Rating != nil {
		r := *f.Rating
		out.Rating = &r
	}
	if f.Profile != nil {
		out.Profile = make(map[string]string, len(f.Profile))
		for k, v := range f.Profile {
			out.Profile[k] = v
		}
	}
	return out
}

// Session is the durable per-correspondent dialogue state.
type Session struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession creates a session in the initial state.
func NewSession(id, language string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateInitial,
		Fields:    Fields{Language: language},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Fields = s.Fields.Clone()
	return &out
}
