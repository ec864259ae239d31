package report

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailNotifier sends the log through the Gmail API using a stored OAuth
// token.
type GmailNotifier struct {
	cfg  config.ReportConfig
	send func(ctx context.Context, raw string) error
	now  func() time.Time
	log  *logging.Logger
}

// NewGmailNotifier loads the OAuth client credentials and token.
func NewGmailNotifier(ctx context.Context, cfg config.ReportConfig, log *logging.Logger) (*GmailNotifier, error) {
	b, err := os.ReadFile(cfg.Gmail.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading gmail credentials: %w", err)
	}
	oc, err := google.ConfigFromJSON(b, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parsing gmail credentials: %w", err)
	}
	tok, err := tokenFromFile(cfg.Gmail.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("no gmail token at %s: %w", cfg.Gmail.TokenFile, err)
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &GmailNotifier{
		cfg: cfg,
		send: func(ctx context.Context, raw string) error {
			_, err := svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
			return err
		},
		now: time.Now,
		log: log.Sub("report"),
	}, nil
}

func (n *GmailNotifier) Name() string { return "gmail" }

// Notify sends the log to the configured recipients.
func (n *GmailNotifier) Notify(ctx context.Context, snap Snapshot) error {
	if len(n.cfg.To) == 0 {
		return &domain.DeliveryError{Notifier: n.Name(), Err: fmt.Errorf("no recipients configured")}
	}
	msg := buildMessage("", n.cfg.To, subjectOf(n.cfg), snap, n.now())
	if err := n.send(ctx, base64.URLEncoding.EncodeToString(msg)); err != nil {
		return &domain.DeliveryError{Notifier: n.Name(), Err: err}
	}
	n.log.Info().Strs("to", n.cfg.To).Msg("report sent via gmail")
	return nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
