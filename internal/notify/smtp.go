package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/JonMunkholm/masterfile/internal/core"
)

// SMTPConfig holds the mail relay and envelope settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // Empty disables SMTP AUTH
	Password string
	TLS      string // mandatory (default), opportunistic, none
	SSL      bool   // Implicit TLS, usually port 465
	Timeout  time.Duration

	From string
	To   []string
	Cc   []string
}

// Validate checks that a message can be addressed and relayed.
func (c SMTPConfig) Validate() error {
	var errs []string
	if c.Host == "" {
		errs = append(errs, "SMTP host is required")
	}
	if c.From == "" {
		errs = append(errs, "sender address is required")
	}
	if len(c.To) == 0 {
		errs = append(errs, "at least one recipient is required")
	}
	switch strings.ToLower(c.TLS) {
	case "", "mandatory", "opportunistic", "none":
	default:
		errs = append(errs, fmt.Sprintf("unknown TLS policy %q", c.TLS))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// SMTP sends the report as one e-mail with the backups attached.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP validates cfg and returns an SMTP notifier.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("smtp notifier: %w", err)
	}
	return &SMTP{cfg: cfg}, nil
}

// Send relays n. A nil error means the relay accepted the message.
func (s *SMTP) Send(ctx context.Context, n core.Notification) error {
	msg, err := s.message(n)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTP) clientOptions() []mail.Option {
	opts := []mail.Option{}
	if s.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	}
	switch strings.ToLower(s.cfg.TLS) {
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// message builds the MIME message for n.
func (s *SMTP) message(n core.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("sender %q: %w", s.cfg.From, err)
	}
	if err := msg.To(s.cfg.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	if len(s.cfg.Cc) > 0 {
		if err := msg.Cc(s.cfg.Cc...); err != nil {
			return nil, fmt.Errorf("cc recipients: %w", err)
		}
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)

	for _, a := range n.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return msg, nil
}
