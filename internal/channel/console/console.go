// Package console is a line-oriented transport over a reader and writer,
// used to try the dialogue from a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// Channel implements domain.Channel for a single local correspondent.
type Channel struct {
	in   io.Reader
	from string
	log  *logging.Logger

	outMu sync.Mutex
	out   io.Writer

	mu      sync.RWMutex
	handler func(domain.InboundMessage)
	running bool
	lines   int
}

// New creates a console channel. Every line read from in is a message from
// the correspondent named from.
func New(in io.Reader, out io.Writer, from string, log *logging.Logger) *Channel {
	if from == "" {
		from = "local"
	}
	return &Channel{in: in, out: out, from: from, log: log.Sub("console")}
}

func (c *Channel) ID() string { return "console" }

// From is the correspondent address used for every line.
func (c *Channel) From() string { return c.from }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{ChatTypes: []domain.ChatType{domain.ChatTypeDM}, Multiline: true}
}

func (c *Channel) OnMessage(handler func(domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Start reads lines until the input ends or ctx is cancelled. Blank lines
// are skipped.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c.dispatch(line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("console: reading input: %w", err)
	}
	c.log.Debug().Msg("console input closed")
	return nil
}

func (c *Channel) Stop(_ context.Context) error { return nil }

// Status reports whether input is still being read.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{ChannelID: "console", Connected: c.running, Running: c.running, Peers: 1}
}

// Send prints a reply, prefixing each line.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	for _, line := range strings.Split(msg.Body, "\n") {
		if _, err := fmt.Fprintf(c.out, "bot> %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(c.out)
	return err
}

// Lines is how many input lines have been dispatched.
func (c *Channel) Lines() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lines
}

func (c *Channel) dispatch(line string) {
	c.mu.Lock()
	c.lines++
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return
	}
	handler(domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "console",
		From:      c.from,
		ChatID:    c.from,
		ChatType:  domain.ChatTypeDM,
		Body:      line,
		Timestamp: time.Now(),
	})
}
