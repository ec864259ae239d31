package report

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// SMTPNotifier mails the log as an attachment and optionally files a copy
// in an IMAP mailbox.
type SMTPNotifier struct {
	cfg config.ReportConfig
	log *logging.Logger

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	archive  func(ctx context.Context, msg []byte, at time.Time) error
	now      func() time.Time
}

// NewSMTPNotifier creates a notifier from the report config.
func NewSMTPNotifier(cfg config.ReportConfig, log *logging.Logger) *SMTPNotifier {
	n := &SMTPNotifier{
		cfg:      cfg,
		log:      log.Sub("report"),
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	n.archive = n.appendIMAP
	return n
}

func (n *SMTPNotifier) Name() string { return "smtp" }

// Notify sends the log. An archive failure is logged but does not fail
// the delivery.
func (n *SMTPNotifier) Notify(ctx context.Context, snap Snapshot) error {
	s := n.cfg.SMTP
	to := n.cfg.To
	if len(to) == 0 && s.From != "" {
		to = []string{s.From}
	}
	if s.Host == "" || len(to) == 0 {
		return &domain.DeliveryError{Notifier: n.Name(), Err: fmt.Errorf("smtp host and recipients are required")}
	}

	now := n.now()
	msg := buildMessage(s.From, to, subjectOf(n.cfg), snap, now)

	port := s.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(port))
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	n.log.Info().Str("addr", addr).Strs("to", to).Msg("sending report")
	if err := n.sendMail(addr, auth, s.From, to, msg); err != nil {
		return &domain.DeliveryError{Notifier: n.Name(), Err: err}
	}

	if s.IMAP.Host != "" {
		if err := n.archive(ctx, msg, now); err != nil {
			n.log.Warn().Err(err).Str("host", s.IMAP.Host).Msg("failed to archive report copy")
		}
	}
	return nil
}

func (n *SMTPNotifier) appendIMAP(_ context.Context, msg []byte, at time.Time) error {
	s := n.cfg.SMTP
	port := s.IMAP.Port
	if port == 0 {
		port = 993
	}
	mailbox := s.IMAP.Mailbox
	if mailbox == "" {
		mailbox = "Sent"
	}

	addr := net.JoinHostPort(s.IMAP.Host, strconv.Itoa(port))
	c, err := client.DialTLS(addr, &tls.Config{ServerName: s.IMAP.Host})
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	defer c.Logout()

	if err := c.Login(s.Username, s.Password); err != nil {
		return fmt.Errorf("IMAP login: %w", err)
	}
	if err := c.Append(mailbox, []string{imap.SeenFlag}, at, bytes.NewBuffer(msg)); err != nil {
		return fmt.Errorf("IMAP append to %s: %w", mailbox, err)
	}
	n.log.Debug().Str("mailbox", mailbox).Msg("report archived")
	return nil
}
