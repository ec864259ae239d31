package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/soyeahso/attendant/internal/domain"
)

// ProtocolVersion is the operator socket protocol this server speaks.
const ProtocolVersion = 1

// Frame kinds on the operator socket. Operators send requests; the server
// answers with responses and pushes events.
const (
	KindRequest  = "req"
	KindResponse = "res"
	KindEvent    = "event"
)

// Events pushed to operators.
const (
	EventChallenge        = "connect.challenge"
	EventSessionCompleted = "session.completed"
	EventSessionHandoff   = "session.handoff"
)

// pushedEvents is advertised in Hello.
var pushedEvents = []string{EventChallenge, EventSessionCompleted, EventSessionHandoff}

// Frame is one JSON message on the operator socket.
type Frame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`

	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
}

// Code classifies a failed request.
type Code string

const (
	CodeProtocol          Code = "protocol_error"
	CodeProtocolMismatch  Code = "protocol_mismatch"
	CodeUnauthorized      Code = "unauthorized"
	CodeRateLimited       Code = "rate_limited"
	CodeMethodNotFound    Code = "method_not_found"
	CodeInvalidParams     Code = "invalid_params"
	CodeSessionNotFound   Code = "session_not_found"
	CodeTicketNotFound    Code = "ticket_not_found"
	CodeStoreUnavailable  Code = "store_unavailable"
	CodeReportUnavailable Code = "report_unavailable"
)

// Retryable reports whether the same request can succeed later without
// the operator changing anything.
func (c Code) Retryable() bool {
	switch c {
	case CodeRateLimited, CodeStoreUnavailable, CodeReportUnavailable:
		return true
	}
	return false
}

// RPCError is the body of a failed response.
type RPCError struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *RPCError) Error() string { return string(e.Code) + ": " + e.Message }

func rpcErrorf(code Code, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...), Retryable: code.Retryable()}
}

// ConnectParams open an operator connection.
type ConnectParams struct {
	Protocol int          `json:"protocol"`
	Operator string       `json:"operator,omitempty"`
	Auth     *Credentials `json:"auth,omitempty"`
}

// Credentials carry an operator secret. Which field is checked depends on
// the configured auth mode.
type Credentials struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// Hello answers a successful connect.
type Hello struct {
	Protocol   int      `json:"protocol"`
	Version    string   `json:"version"`
	Commit     string   `json:"commit,omitempty"`
	ConnID     string   `json:"connId"`
	Methods    []string `json:"methods"`
	Events     []string `json:"events"`
	MaxPayload int      `json:"maxPayload"`
}

// Completed is the session.completed event body.
type Completed struct {
	TicketCode    string                  `json:"ticketCode"`
	Status        domain.CompletionStatus `json:"status"`
	Correspondent string                  `json:"correspondent"`
}

// HandoffNotice is the session.handoff event body. ResumeState is where the
// dialogue would have continued had the correspondent declined.
type HandoffNotice struct {
	Session     string       `json:"session"`
	Name        string       `json:"name,omitempty"`
	ResumeState domain.State `json:"resumeState"`
}

func okResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding %s response: %w", id, err)
	}
	ok := true
	return Frame{Type: KindResponse, ID: id, OK: &ok, Payload: raw}, nil
}

func errorResponse(id string, e *RPCError) Frame {
	ok := false
	return Frame{Type: KindResponse, ID: id, OK: &ok, Error: e}
}

func eventFrame(name string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding %s event: %w", name, err)
	}
	return Frame{Type: KindEvent, Event: name, Payload: raw, Seq: seq}, nil
}
