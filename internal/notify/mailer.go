package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/pkg/config"
)

// Message is a plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer returns an SMTP mailer, or a logging mailer when no SMTP host is configured.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	addr string
	host string
	from string
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

// NewSMTPMailer constructs an SMTPMailer. Credentials are optional.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{
		addr: cfg.SMTPHost + ":" + strconv.Itoa(cfg.SMTPPort),
		host: cfg.SMTPHost,
		from: cfg.From,
		send: smtp.SendMail,
		now:  time.Now,
	}
	if cfg.SMTPUser != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return m
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("send mail: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, msg.To, m.compose(msg)); err != nil {
		return fmt.Errorf("send mail via %s: %w", m.addr, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headerSafe(v))
		b.WriteString("\r\n")
	}
	header("From", m.from)
	header("To", strings.Join(msg.To, ", "))
	header("Subject", msg.Subject)
	header("Date", m.now().UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// headerSafe drops line breaks so values cannot inject headers.
func headerSafe(v string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(v)
}
