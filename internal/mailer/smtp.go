// Package mailer delivers one-time codes over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/ovialab/cliniguard-server/internal/config"
	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.Mailer = (*SMTP)(nil)

// SMTP sends mail through a single relay. Authentication is used only when
// a username is configured, so a local unauthenticated relay works out of
// the box.
type SMTP struct {
	addr string
	from string
	auth smtp.Auth
}

func New(cfg config.SMTP) *SMTP {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTP{
		addr: net.JoinHostPort(cfg.Host, cfg.Port),
		from: cfg.From,
		auth: auth,
	}
}

// Send delivers one message. The context only gates starting the send; the
// underlying SMTP exchange is not cancellable mid-flight.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	return nil
}
