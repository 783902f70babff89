package collab

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Mailer delivers outreach emails over SMTP with STARTTLS auth.
type Mailer struct {
	addr       string
	from       string
	signerName string
	org        string
	auth       smtp.Auth
}

// NewMailer creates an SMTP mailer. addr is host:port.
func NewMailer(addr, from, password, signerName, org string) (*Mailer, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp address %q: %w", addr, err)
	}
	return &Mailer{
		addr:       addr,
		from:       from,
		signerName: signerName,
		org:        org,
		auth:       smtp.PlainAuth("", from, password, host),
	}, nil
}

// Send finalizes the email content and delivers it. The subject argument is
// the fallback used when the generated body carries no subject line of its
// own.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	finalSubject, finalBody := FinalizeEmail(body, subject, m.signerName, m.org)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", finalSubject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(finalBody, "\n", "\r\n"))

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
