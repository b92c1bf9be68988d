package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func TestSendMailUsesRelay(t *testing.T) {
	m := NewSMTPMailer(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: "2525", SMTPSender: "billing@example.com"})
	var got captured
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		got = captured{addr: addr, from: from, to: to, msg: string(msg)}
		return nil
	}

	require.NoError(t, m.SendMail(context.Background(), "user@example.com", "Hello", "<p>hi</p>"))
	assert.Equal(t, "smtp.example.com:2525", got.addr)
	assert.Equal(t, "billing@example.com", got.from)
	assert.Equal(t, []string{"user@example.com"}, got.to)
	assert.Contains(t, got.msg, "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(got.msg, "\r\n\r\n<p>hi</p>"))
}

func TestSendMailWithoutHostIsNoop(t *testing.T) {
	m := NewSMTPMailer(&config.Config{})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("must not be called")
	}
	assert.False(t, m.Enabled())
	assert.NoError(t, m.SendMail(context.Background(), "user@example.com", "x", "y"))
}

func TestTrialWarningMessage(t *testing.T) {
	end := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	u := &models.User{Name: "Ada <admin>", Email: "ada@example.com", TrialEndDate: &end}

	subject, body := trialWarningMessage(u, 1, "https://app.example.com/pricing")
	assert.Equal(t, "Your TFVisualizer trial expires in 1 day", subject)
	assert.Contains(t, body, "March 09, 2026")
	assert.Contains(t, body, "Ada &lt;admin&gt;")

	subject, _ = trialWarningMessage(u, 7, "")
	assert.Equal(t, "Your TFVisualizer trial expires in 7 days", subject)
}

func TestTrialNotifierPropagatesSendErrors(t *testing.T) {
	m := NewSMTPMailer(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: "25"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay down") }

	n := NewTrialNotifier(m, "https://app.example.com")
	err := n.TrialWarning(context.Background(), &models.User{Email: "x@example.com"}, 3)
	assert.EqualError(t, err, "relay down")
}
