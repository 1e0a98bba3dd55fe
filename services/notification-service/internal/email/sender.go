package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender sends plain-text email via unauthenticated SMTP
// (Mailpit-compatible in development). When bcc is set, every message is
// blind-copied to the salon's ops mailbox so the owner sees what clients
// receive.
type SMTPSender struct {
	addr string
	from string
	bcc  string
}

func NewSMTPSender(host, port, from, bcc string) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@fridakids.com"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", strings.TrimSpace(host), strings.TrimSpace(port)),
		from: from,
		bcc:  strings.TrimSpace(bcc),
	}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
	recipients := []string{to}
	if s.bcc != "" && s.bcc != to {
		recipients = append(recipients, s.bcc)
	}
	msg := buildMessage(s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, recipients, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	// The BCC recipient goes on the envelope only, never in the headers.
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}
