package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
)

// SenderFunc delivers one message. It matches smtp.SendMail.
type SenderFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends emails via SMTP. Without a host it only logs.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	sender   string
	send     SenderFunc
}

// NewSMTPMailer creates a mailer from the SMTP_* settings.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	sender := cfg.SMTPSender
	if sender == "" {
		sender = "no-reply@localhost"
		log.Infof("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		sender:   sender,
		send:     smtp.SendMail,
	}
}

// Enabled reports whether a relay is configured.
func (m *SMTPMailer) Enabled() bool {
	return m.host != ""
}

// SendMail sends an HTML message to one recipient.
func (m *SMTPMailer) SendMail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.Enabled() {
		log.Infof("[Mail] SMTP not configured, skipping %q to %s", subject, to)
		return nil
	}

	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	msg := buildMessage(m.sender, to, subject, body)

	if err := m.send(addr, auth, m.sender, []string{to}, msg); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s", to, addr)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
