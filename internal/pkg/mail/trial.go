package mail

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/ManuelReschke/TFVisualizer/app/models"
)

// TrialNotifier sends trial expiry reminders.
type TrialNotifier struct {
	mailer     *SMTPMailer
	pricingURL string
}

func NewTrialNotifier(mailer *SMTPMailer, frontendURL string) *TrialNotifier {
	return &TrialNotifier{mailer: mailer, pricingURL: frontendURL + "/pricing"}
}

// TrialWarning tells the user how many days of trial remain.
func (n *TrialNotifier) TrialWarning(ctx context.Context, user *models.User, daysRemaining int) error {
	subject, body := trialWarningMessage(user, daysRemaining, n.pricingURL)
	return n.mailer.SendMail(ctx, user.Email, subject, body)
}

func trialWarningMessage(user *models.User, daysRemaining int, pricingURL string) (string, string) {
	unit := "days"
	if daysRemaining == 1 {
		unit = "day"
	}
	subject := fmt.Sprintf("Your TFVisualizer trial expires in %d %s", daysRemaining, unit)

	var ends string
	if user.TrialEndDate != nil {
		ends = user.TrialEndDate.UTC().Format("January 02, 2006")
	} else {
		ends = time.Now().UTC().AddDate(0, 0, daysRemaining).Format("January 02, 2006")
	}
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your TFVisualizer Pro trial will expire on %s.</p>"+
			"<p><a href=\"%s\">Upgrade now</a> to keep unlimited projects and AI features.</p>",
		html.EscapeString(user.Name), ends, html.EscapeString(pricingURL),
	)
	return subject, body
}
