package domain

import "time"

// CompletionStatus is the final status tag of a finished intake.
type CompletionStatus string

const (
	StatusCompleted CompletionStatus = "Completed"
	StatusCancelled CompletionStatus = "Cancelled"
)

// CompletionRecord is the immutable snapshot of a finished session.
type CompletionRecord struct {
	CorrespondentID string           `json:"correspondentId"`
	Name            string           `json:"name"`
	RegistrationID  string           `json:"registrationId"`
	Option          string           `json:"option"`
	Details         string           `json:"details"`
	Rating          *int             `json:"rating,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	TicketCode      string           `json:"ticketCode"`
	Status          CompletionStatus `json:"status"`
}
