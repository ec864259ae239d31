package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/logging"
)

// DefaultSubject is used when report.subject is unset.
const DefaultSubject = "Relatório de Atendimento"

const mailBody = "Segue em anexo o relatório de atendimentos."

// Notifier delivers a snapshot of the completion log somewhere an operator
// will see it.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, snap Snapshot) error
}

// Nop is the notifier used when delivery is disabled.
type Nop struct{}

func (Nop) Name() string                               { return "none" }
func (Nop) Notify(_ context.Context, _ Snapshot) error { return nil }

// NewNotifier builds the notifier selected by cfg.Notifier.
func NewNotifier(ctx context.Context, cfg config.ReportConfig, log *logging.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case "", "none":
		return Nop{}, nil
	case "smtp":
		return NewSMTPNotifier(cfg, log), nil
	case "gmail":
		return NewGmailNotifier(ctx, cfg, log)
	case "s3":
		return NewS3Notifier(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown report notifier %q", cfg.Notifier)
	}
}

func subjectOf(cfg config.ReportConfig) string {
	if cfg.Subject != "" {
		return cfg.Subject
	}
	return DefaultSubject
}

// buildMessage renders an RFC 5322 message carrying the snapshot as a CSV
// attachment.
func buildMessage(from string, to []string, subject string, snap Snapshot, now time.Time) []byte {
	name := snap.Name
	if name == "" {
		name = AttachmentName
	}

	boundary := fmt.Sprintf("attendant_%d", now.UnixNano())
	var msg strings.Builder
	if from != "" {
		msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	}
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(mailBody)
	msg.WriteString("\r\n\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/csv; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", name))
	msg.WriteString("\r\n")
	msg.WriteString(wrap76(base64.StdEncoding.EncodeToString(snap.Data)))
	msg.WriteString("\r\n")
	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return []byte(msg.String())
}

func wrap76(s string) string {
	var b strings.Builder
	for len(s) > 76 {
		b.WriteString(s[:76])
		b.WriteString("\r\n")
		s = s[76:]
	}
	b.WriteString(s)
	return b.String()
}
