package domain

import (
	"errors"
	"fmt"
)

// ErrLookupMiss is returned when the registry has no matching record.
var ErrLookupMiss = errors.New("registry: no matching record")

// ValidationError describes input that failed the current state's validator.
type ValidationError struct {
	State  State
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input in state %s: %s", e.State, e.Reason)
}

// LookupMissError carries the registration id that was not found.
type LookupMissError struct {
	RegistrationID string
}

func (e *LookupMissError) Error() string {
	return fmt.Sprintf("registry: no record for %s", e.RegistrationID)
}

func (e *LookupMissError) Unwrap() error { return ErrLookupMiss }

// StorePersistError means a session could not be written durably.
// The in-memory copy stays authoritative until the next successful write.
type StorePersistError struct {
	SessionID string
	Err       error
}

func (e *StorePersistError) Error() string {
	return fmt.Sprintf("persisting session %s: %v", e.SessionID, e.Err)
}

func (e *StorePersistError) Unwrap() error { return e.Err }

// DeliveryError means report delivery failed. It never affects a session.
type DeliveryError struct {
	Notifier string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("report delivery via %s: %v", e.Notifier, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// TransportSendError means an outbound message failed after retrying.
type TransportSendError struct {
	ChannelID string
	To        string
	Attempts  int
	Err       error
}

func (e *TransportSendError) Error() string {
	return fmt.Sprintf("send to %s via %s failed after %d attempt(s): %v", e.To, e.ChannelID, e.Attempts, e.Err)
}

func (e *TransportSendError) Unwrap() error { return e.Err }
