package gateway

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeRetryable(t *testing.T) {
	retry := map[Code]bool{
		CodeProtocol:          false,
		CodeProtocolMismatch:  false,
		CodeUnauthorized:      false,
		CodeRateLimited:       true,
		CodeMethodNotFound:    false,
		CodeInvalidParams:     false,
		CodeSessionNotFound:   false,
		CodeTicketNotFound:    false,
		CodeStoreUnavailable:  true,
		CodeReportUnavailable: true,
	}
	for code, want := range retry {
		assert.Equal(t, want, code.Retryable(), string(code))
		assert.Equal(t, want, rpcErrorf(code, "x").Retryable, string(code))
	}
}

func TestRPCErrorIsAnError(t *testing.T) {
	var err error = rpcErrorf(CodeSessionNotFound, "no session %q", "irc:ghost")
	assert.EqualError(t, err, `session_not_found: no session "irc:ghost"`)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeSessionNotFound, rpcErr.Code)
}

func TestOKResponse(t *testing.T) {
	f, err := okResponse("req-1", Completed{TicketCode: "DP1A2B3C4D", Status: domain.StatusCompleted, Correspondent: "irc:ana"})
	require.NoError(t, err)
	assert.Equal(t, KindResponse, f.Type)
	assert.Equal(t, "req-1", f.ID)
	require.NotNil(t, f.OK)
	assert.True(t, *f.OK)
	assert.Nil(t, f.Error)
	assert.JSONEq(t, `{"ticketCode":"DP1A2B3C4D","status":"Completed","correspondent":"irc:ana"}`, string(f.Payload))
}

func TestOKResponse_Unencodable(t *testing.T) {
	_, err := okResponse("req-1", map[string]any{"ch": make(chan int)})
	assert.ErrorContains(t, err, "req-1")
}

func TestErrorResponseWire(t *testing.T) {
	f := errorResponse("req-9", rpcErrorf(CodeStoreUnavailable, "database is locked"))
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "res",
		"id": "req-9",
		"ok": false,
		"error": {"code": "store_unavailable", "message": "database is locked", "retryable": true}
	}`, string(data))

	data, err = json.Marshal(errorResponse("", rpcErrorf(CodeProtocol, "malformed frame")))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "retryable")
	assert.NotContains(t, string(data), `"id"`)
}

func TestEventFrame(t *testing.T) {
	f, err := eventFrame(EventSessionHandoff, HandoffNotice{Session: "webchat:42", ResumeState: domain.StateOptionSelection}, 7)
	require.NoError(t, err)
	assert.Equal(t, KindEvent, f.Type)
	assert.Equal(t, EventSessionHandoff, f.Event)
	assert.Equal(t, int64(7), f.Seq)
	assert.Nil(t, f.OK)
	assert.JSONEq(t, `{"session":"webchat:42","resumeState":"option_selection"}`, string(f.Payload))

	// The challenge goes out before any sequence exists.
	f, err = eventFrame(EventChallenge, map[string]string{"nonce": "n"}, 0)
	require.NoError(t, err)
	data, _ := json.Marshal(f)
	assert.NotContains(t, string(data), `"seq"`)
}

func TestConnectParamsDecode(t *testing.T) {
	var p ConnectParams
	require.NoError(t, json.Unmarshal([]byte(`{"protocol":1,"operator":"rh-desk","auth":{"password":"pw"}}`), &p))
	assert.Equal(t, ProtocolVersion, p.Protocol)
	assert.Equal(t, "rh-desk", p.Operator)
	require.NotNil(t, p.Auth)
	assert.Equal(t, "pw", p.Auth.Password)
	assert.Empty(t, p.Auth.Token)

	p = ConnectParams{}
	require.NoError(t, json.Unmarshal([]byte(`{"protocol":1}`), &p))
	assert.Nil(t, p.Auth)
}
