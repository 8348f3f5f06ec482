package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

const loginCodeSubject = "Your Astral login code"

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	dialer   dialer
	from     string
	fromName string
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = useTLS
	if useTLS {
		d.TLSConfig = &tls.Config{ServerName: host}
	}
	return &SMTPSender{
		dialer:   d,
		from:     from,
		fromName: fromName,
	}, nil
}

func (s *SMTPSender) SendLoginCode(_ context.Context, toEmail string, code string, expiresAt time.Time) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	return s.dialer.DialAndSend(s.buildMessage(toEmail, code, expiresAt))
}

func (s *SMTPSender) buildMessage(toEmail, code string, expiresAt time.Time) *gomail.Message {
	msg := gomail.NewMessage()
	if strings.TrimSpace(s.fromName) != "" {
		msg.SetAddressHeader("From", s.from, s.fromName)
	} else {
		msg.SetHeader("From", s.from)
	}
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", loginCodeSubject)
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your login code is %s.\nIt expires at %s UTC.\n",
		code,
		expiresAt.UTC().Format(time.RFC3339),
	))
	msg.AddAlternative("text/html", fmt.Sprintf(
		"<p>Your login code is <strong>%s</strong>.</p><p>It expires at %s UTC.</p>",
		code,
		expiresAt.UTC().Format(time.RFC3339),
	))
	return msg
}
