// Package irc connects the intake service to IRC. Private messages are
// correspondents; channel messages that mention the bot are group context.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/version"
)

// maxLineBytes keeps each PRIVMSG well under the 512 byte line limit once
// the prefix and target are added.
const maxLineBytes = 400

// Channel implements domain.Channel for IRC.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
	peers   map[string]struct{}
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg:   cfg,
		log:   log.Sub("irc"),
		peers: make(map[string]struct{}),
	}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM, domain.ChatTypeGroup},
	}
}

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "irc",
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		Peers:     len(c.peers),
		LastError: c.lastErr,
	}
}

func (c *Channel) port() int {
	switch {
	case c.cfg.Port != 0:
		return c.cfg.Port
	case c.cfg.UseTLS:
		return 6697
	default:
		return 6667
	}
}

func (c *Channel) clientConfig() girc.Config {
	gc := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.port(),
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "Attendant intake assistant",
		SSL:     c.cfg.UseTLS,
		Version: "attendant/" + version.Version,
	}
	if c.cfg.UseTLS {
		gc.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}
	if c.cfg.SASL && c.cfg.Password != "" {
		gc.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	} else if c.cfg.Password != "" {
		gc.ServerPass = c.cfg.Password
	}
	return gc
}

// Start connects to the IRC server and blocks until the connection ends
// or ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	client := girc.New(c.clientConfig())
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", c.port()).
		Str("nick", c.cfg.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop gracefully disconnects from the IRC server.
func (c *Channel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("attendant shutting down")
	}
	c.running = false
	return nil
}

// Send delivers a reply to a nick or channel, one PRIVMSG per line.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("irc: no target specified")
	}

	lines := splitMessage(msg.Body, maxLineBytes)
	for _, line := range lines {
		client.Cmd.Message(msg.To, line)
	}

	c.log.Debug().
		Str("to", msg.To).
		Int("lines", len(lines)).
		Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		client.Cmd.Join(ch)
	}
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	msg, ok := inbound(client.GetNick(), e)
	if !ok {
		return
	}
	c.dispatch(msg)
}

// inbound converts a PRIVMSG into a message for the router. Channel
// messages are only passed on when they address the bot by nick.
func inbound(self string, e girc.Event) (domain.InboundMessage, bool) {
	from := e.Source.Name
	if strings.EqualFold(from, self) {
		return domain.InboundMessage{}, false
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	msg := domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "irc",
		From:      from,
		FromName:  from,
		ChatID:    from,
		ChatType:  domain.ChatTypeDM,
		Body:      body,
		Timestamp: time.Now(),
	}

	if target := e.Params[0]; girc.IsValidChannel(target) {
		if self == "" || !strings.Contains(strings.ToLower(body), strings.ToLower(self)) {
			return domain.InboundMessage{}, false
		}
		msg.ChatID = target
		msg.ChatType = domain.ChatTypeGroup
	}
	return msg, true
}

func (c *Channel) dispatch(msg domain.InboundMessage) {
	c.mu.Lock()
	if msg.ChatType == domain.ChatTypeDM {
		c.peers[msg.From] = struct{}{}
	}
	handler := c.handler
	c.mu.Unlock()

	if handler != nil {
		handler(msg)
	}
}

// splitMessage breaks a reply into IRC lines. PRIVMSG cannot carry a
// newline, so every input line becomes at least one output line; blank
// lines are dropped. Long lines are cut at rune boundaries so multi-byte
// characters survive.
func splitMessage(text string, maxBytes int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r ")
		for len(line) > maxBytes {
			cut := maxBytes
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxBytes
			}
			if sp := strings.LastIndexByte(line[:cut], ' '); sp > cut/2 {
				cut = sp
			}
			out = append(out, strings.TrimRight(line[:cut], " "))
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
