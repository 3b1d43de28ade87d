package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
)

// StatusSMTPOK is the status reported for a message the server accepted.
const StatusSMTPOK = 250

// SMTPSender delivers through an SMTP relay. Username enables PLAIN auth.
type SMTPSender struct {
	Addr     string
	From     string
	Username string
	Password string
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (int, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var auth smtp.Auth
	if s.Username != "" {
		host, _, err := net.SplitHostPort(s.Addr)
		if err != nil {
			return 0, fmt.Errorf("notify: smtp addr %q: %w", s.Addr, err)
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}

	if err := smtp.SendMail(s.Addr, auth, s.From, []string{msg.Recipient}, s.render(msg)); err != nil {
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) {
			return tpErr.Code, fmt.Errorf("%w: %w", ErrDelivery, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return StatusSMTPOK, nil
}

func (s *SMTPSender) render(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.From + "\r\n")
	b.WriteString("To: " + msg.Recipient + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
