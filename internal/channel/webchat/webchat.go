// Package webchat is a browser chat transport. Each WebSocket connection is
// one correspondent. The server issues the correspondent id together with a
// resume token; only a holder of the token can reattach to that id.
package webchat

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// DefaultPath is where the endpoint is mounted when none is configured.
const DefaultPath = "/chat"

// DefaultResume is how long an idle resume token stays valid.
const DefaultResume = 24 * time.Hour

const (
	maxFrameBytes = 16 * 1024
	writeTimeout  = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Frame types.
const (
	FrameSession = "session"
	FrameMessage = "message"
)

// Frame is the JSON shape exchanged in both directions. The first frame the
// server sends is a session frame carrying the issued id and token.
type Frame struct {
	Type  string `json:"type,omitempty"`
	ID    string `json:"id,omitempty"`
	Token string `json:"token,omitempty"`
	Text  string `json:"text,omitempty"`
	TS    int64  `json:"ts,omitempty"`
}

var errTokenMismatch = errors.New("resume token does not match")

type conn struct {
	id     string
	socket *websocket.Conn
	mu     sync.Mutex
}

func (c *conn) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.socket.WriteJSON(f)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// grant is an issued identity. seen moves forward on every attach and
// detach.
type grant struct {
	token string
	seen  time.Time
}

// Channel implements domain.Channel over WebSockets. It is an http.Handler
// mounted on the gateway.
type Channel struct {
	path     string
	resume   time.Duration
	upgrader websocket.Upgrader
	log      *logging.Logger
	now      func() time.Time

	mu      sync.RWMutex
	handler func(domain.InboundMessage)
	conns   map[string]*conn
	grants  map[string]*grant
	running bool
}

// New creates a webchat channel. Browsers must connect from the gateway's
// own origin or one of allowedOrigins.
func New(cfg config.WebchatConfig, allowedOrigins []string, log *logging.Logger) *Channel {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	resume := time.Duration(cfg.ResumeHours) * time.Hour
	if resume <= 0 {
		resume = DefaultResume
	}
	return &Channel{
		path:   path,
		resume: resume,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log:    log.Sub("webchat"),
		now:    time.Now,
		conns:  make(map[string]*conn),
		grants: make(map[string]*grant),
	}
}

// checkOrigin accepts requests without an Origin, same-origin pages, and
// the listed origins. "*" lists every origin.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (c *Channel) ID() string { return "webchat" }

// Path is the HTTP path the channel expects to be mounted at.
func (c *Channel) Path() string { return c.path }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
		Multiline: true,
	}
}

func (c *Channel) OnMessage(handler func(domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Start marks the channel running and blocks until ctx is done. The
// gateway owns the listener.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	c.log.Info().Str("path", c.path).Dur("resume", c.resume).Msg("webchat ready")

	<-ctx.Done()
	return c.Stop(context.Background())
}

// Stop closes every open conversation. Issued tokens stay valid so browsers
// can resume after a restart of the channel.
func (c *Channel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cn := range c.conns {
		cn.socket.Close()
		delete(c.conns, id)
	}
	c.running = false
	return nil
}

// Status reports the number of connected correspondents.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "webchat",
		Connected: c.running,
		Running:   c.running,
		Peers:     len(c.conns),
	}
}

// Send writes a reply frame to the correspondent's connection.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	cn, ok := c.conns[msg.To]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("webchat: %s is not connected", msg.To)
	}
	f := Frame{Type: FrameMessage, ID: uuid.New().String(), Text: msg.Body, TS: c.now().UnixMilli()}
	if err := cn.write(f); err != nil {
		return fmt.Errorf("webchat: write to %s: %w", msg.To, err)
	}
	return nil
}

// claim resolves the identity for a new connection. A known id needs its
// token. Anything else gets a fresh id and token.
func (c *Channel) claim(id, token string) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for gid, g := range c.grants {
		if _, live := c.conns[gid]; !live && now.Sub(g.seen) > c.resume {
			delete(c.grants, gid)
		}
	}

	if g, ok := c.grants[id]; ok && id != "" {
		if subtle.ConstantTimeCompare([]byte(token), []byte(g.token)) != 1 {
			return "", "", errTokenMismatch
		}
		g.seen = now
		return id, g.token, nil
	}

	id, token = uuid.New().String(), uuid.New().String()
	c.grants[id] = &grant{token: token, seen: now}
	return id, token, nil
}

// ServeHTTP upgrades the request and runs the conversation's read loop. A
// resume with the right token replaces the correspondent's previous
// connection; a wrong or missing token is refused before the upgrade.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.upgrader.CheckOrigin(r) {
		c.log.Warn().Str("origin", r.Header.Get("Origin")).Str("remote", r.RemoteAddr).Msg("webchat origin refused")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	q := r.URL.Query()
	id, token, err := c.claim(q.Get("id"), q.Get("token"))
	if err != nil {
		c.log.Warn().Str("correspondent", q.Get("id")).Str("remote", r.RemoteAddr).Msg("webchat resume refused")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	socket, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	socket.SetReadLimit(maxFrameBytes)

	cn := &conn{id: id, socket: socket}
	if err := cn.write(Frame{Type: FrameSession, ID: id, Token: token, TS: c.now().UnixMilli()}); err != nil {
		c.log.Debug().Err(err).Str("correspondent", id).Msg("webchat session frame failed")
		socket.Close()
		return
	}

	c.mu.Lock()
	if old, ok := c.conns[id]; ok {
		old.socket.Close()
	}
	c.conns[id] = cn
	c.mu.Unlock()
	c.log.Info().Str("correspondent", id).Str("remote", r.RemoteAddr).Msg("webchat connected")

	done := make(chan struct{})
	go c.keepAlive(cn, done)
	defer func() {
		close(done)
		c.mu.Lock()
		if c.conns[id] == cn {
			delete(c.conns, id)
		}
		if g, ok := c.grants[id]; ok {
			g.seen = c.now()
		}
		c.mu.Unlock()
		socket.Close()
		c.log.Info().Str("correspondent", id).Msg("webchat disconnected")
	}()

	for {
		var f Frame
		if err := socket.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Str("correspondent", id).Msg("webchat read ended")
			}
			return
		}
		if f.Type != "" && f.Type != FrameMessage {
			c.log.Debug().Str("correspondent", id).Str("type", f.Type).Msg("webchat frame ignored")
			continue
		}
		c.dispatch(id, f)
	}
}

func (c *Channel) keepAlive(cn *conn, done <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := cn.ping(); err != nil {
				return
			}
		}
	}
}

func (c *Channel) dispatch(id string, f Frame) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}

	msgID := f.ID
	if msgID == "" {
		msgID = uuid.New().String()
	}
	handler(domain.InboundMessage{
		ID:        msgID,
		ChannelID: "webchat",
		From:      id,
		ChatID:    id,
		ChatType:  domain.ChatTypeDM,
		Body:      f.Text,
		Timestamp: c.now(),
	})
}
