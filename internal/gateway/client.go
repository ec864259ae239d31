package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/attendant/internal/logging"
)

// writeWait bounds a single frame write so one stalled operator cannot hold
// up a broadcast to the others.
const writeWait = 10 * time.Second

// Client is one authenticated operator socket. Sends are serialized; reads
// belong to the server's read loop.
type Client struct {
	ConnID      string
	Operator    string
	AuthMethod  string
	ConnectedAt time.Time

	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, operator string, auth AuthResult) *Client {
	if operator == "" {
		operator = "anonymous"
	}
	return &Client{
		ConnID:      uuid.New().String(),
		Operator:    operator,
		AuthMethod:  auth.Method,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

func (c *Client) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return ErrClientClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

// push sends an unsolicited event.
func (c *Client) push(event string, payload any, seq int64) error {
	f, err := eventFrame(event, payload, seq)
	if err != nil {
		return err
	}
	return c.send(f)
}

// reply answers request id with payload.
func (c *Client) reply(id string, payload any) error {
	f, err := okResponse(id, payload)
	if err != nil {
		return c.send(errorResponse(id, rpcErrorf(CodeProtocol, "response could not be encoded")))
	}
	return c.send(f)
}

// fail answers request id with an error.
func (c *Client) fail(id string, e *RPCError) error {
	return c.send(errorResponse(id, e))
}

// next blocks for the operator's next frame. A frame that is not valid
// JSON is reported as a protocol error and does not end the connection.
func (c *Client) next() (Frame, *RPCError, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, nil, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, rpcErrorf(CodeProtocol, "malformed frame: %v", err), nil
	}
	return f, nil, nil
}

// Close closes the socket once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// operators tracks connected operator sockets by connection id.
type operators struct {
	mu   sync.RWMutex
	byID map[string]*Client
	log  *logging.Logger
}

func newOperators(log *logging.Logger) *operators {
	return &operators{byID: make(map[string]*Client), log: log}
}

func (o *operators) add(c *Client) {
	o.mu.Lock()
	o.byID[c.ConnID] = c
	n := len(o.byID)
	o.mu.Unlock()
	o.log.Info().Str("connId", c.ConnID).Str("operator", c.Operator).Int("connected", n).Msg("operator connected")
}

func (o *operators) remove(c *Client) {
	o.mu.Lock()
	_, ok := o.byID[c.ConnID]
	delete(o.byID, c.ConnID)
	o.mu.Unlock()
	if ok {
		o.log.Info().Str("connId", c.ConnID).Str("operator", c.Operator).Dur("connectedFor", time.Since(c.ConnectedAt)).Msg("operator disconnected")
	}
}

func (o *operators) count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.byID)
}

func (o *operators) snapshot() []*Client {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Client, 0, len(o.byID))
	for _, c := range o.byID {
		out = append(out, c)
	}
	return out
}

// broadcast pushes an event to every operator and returns how many
// received it. An operator whose write fails is disconnected; its read
// loop then unregisters it.
func (o *operators) broadcast(event string, payload any, seq int64) int {
	delivered := 0
	for _, c := range o.snapshot() {
		if err := c.push(event, payload, seq); err != nil {
			o.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("dropping unreachable operator")
			c.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// closeAll disconnects every operator.
func (o *operators) closeAll() {
	o.mu.Lock()
	clients := o.byID
	o.byID = make(map[string]*Client)
	o.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}
