package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// socketPair returns a server-side Client and the peer connection that
// talks to it.
func socketPair(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(ts.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	c := newClient(<-serverSide, "rh-desk", AuthResult{OK: true, Method: "token"})
	t.Cleanup(func() { c.Close() })
	return c, peer
}

func TestNewClient(t *testing.T) {
	c := newClient(nil, "", AuthResult{OK: true, Method: "password"})
	assert.NotEmpty(t, c.ConnID)
	assert.Equal(t, "anonymous", c.Operator)
	assert.Equal(t, "password", c.AuthMethod)
	assert.WithinDuration(t, time.Now(), c.ConnectedAt, time.Second)

	assert.NotEqual(t, c.ConnID, newClient(nil, "x", AuthResult{}).ConnID)
}

func TestClientReplyAndFail(t *testing.T) {
	c, peer := socketPair(t)

	require.NoError(t, c.reply("req-1", map[string]int{"count": 2}))
	require.NoError(t, c.fail("req-2", rpcErrorf(CodeInvalidParams, "id is required")))

	var ok, bad Frame
	require.NoError(t, peer.ReadJSON(&ok))
	require.NoError(t, peer.ReadJSON(&bad))

	assert.Equal(t, "req-1", ok.ID)
	assert.JSONEq(t, `{"count":2}`, string(ok.Payload))
	assert.Equal(t, "req-2", bad.ID)
	require.NotNil(t, bad.Error)
	assert.Equal(t, CodeInvalidParams, bad.Error.Code)
}

func TestClientReplyUnencodable(t *testing.T) {
	c, peer := socketPair(t)

	require.NoError(t, c.reply("req-1", make(chan int)))
	var f Frame
	require.NoError(t, peer.ReadJSON(&f))
	require.NotNil(t, f.Error)
	assert.Equal(t, CodeProtocol, f.Error.Code)
}

func TestClientNext(t *testing.T) {
	c, peer := socketPair(t)

	require.NoError(t, peer.WriteJSON(Frame{Type: KindRequest, ID: "req-1", Method: "health"}))
	f, bad, err := c.next()
	require.NoError(t, err)
	assert.Nil(t, bad)
	assert.Equal(t, "health", f.Method)

	require.NoError(t, peer.WriteMessage(websocket.TextMessage, []byte("[1,2")))
	_, bad, err = c.next()
	require.NoError(t, err)
	require.NotNil(t, bad)
	assert.Equal(t, CodeProtocol, bad.Code)

	peer.Close()
	_, _, err = c.next()
	assert.Error(t, err)
}

func TestClientClosedSend(t *testing.T) {
	c, _ := socketPair(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")
	assert.ErrorIs(t, c.push(EventSessionCompleted, nil, 1), ErrClientClosed)
}

func TestOperators(t *testing.T) {
	ops := newOperators(testLog())
	a, peerA := socketPair(t)
	b, peerB := socketPair(t)

	ops.add(a)
	ops.add(b)
	assert.Equal(t, 2, ops.count())

	assert.Equal(t, 2, ops.broadcast(EventSessionCompleted, Completed{TicketCode: "DP1"}, 3))
	for _, peer := range []*websocket.Conn{peerA, peerB} {
		var f Frame
		require.NoError(t, peer.ReadJSON(&f))
		assert.Equal(t, EventSessionCompleted, f.Event)
		assert.Equal(t, int64(3), f.Seq)
	}

	ops.remove(a)
	ops.remove(a)
	assert.Equal(t, 1, ops.count())

	ops.closeAll()
	assert.Zero(t, ops.count())
	assert.ErrorIs(t, b.push(EventSessionCompleted, nil, 4), ErrClientClosed)
}

func TestOperatorsBroadcastSkipsDeadSocket(t *testing.T) {
	ops := newOperators(testLog())
	live, peer := socketPair(t)
	dead, _ := socketPair(t)
	dead.Close()

	ops.add(live)
	ops.add(dead)
	assert.Equal(t, 1, ops.broadcast(EventSessionHandoff, HandoffNotice{Session: "irc:ana"}, 1))

	var f Frame
	require.NoError(t, peer.ReadJSON(&f))
	assert.Equal(t, EventSessionHandoff, f.Event)
}
