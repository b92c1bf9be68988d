package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/TFVisualizer/app/models"
)

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func isEntitlingStatus(status string) bool {
	switch normalizeStatus(status) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

// statusRank orders entitling statuses, active wins over trialing.
func statusRank(status string) int {
	switch normalizeStatus(status) {
	case models.SubscriptionStatusActive:
		return 2
	case models.SubscriptionStatusTrialing:
		return 1
	default:
		return 0
	}
}

// applyStatus reflects a gateway subscription status onto the owner.
// It reports whether the user changed.
func applyStatus(u *models.User, sub *Subscription, now time.Time) bool {
	before := *u
	switch normalizeStatus(sub.Status) {
	case models.SubscriptionStatusActive:
		u.SubscriptionTier = models.TierPro
		u.SubscriptionStatus = models.STATUS_ACTIVE
		u.EndTrial()
	case models.SubscriptionStatusTrialing:
		u.SubscriptionTier = models.TierPro
		u.SubscriptionStatus = models.STATUS_TRIALING
		if sub.TrialEnd != nil && sub.TrialEnd.After(now) {
			start := now
			if sub.TrialStart != nil {
				start = *sub.TrialStart
			}
			u.StartTrial(start, *sub.TrialEnd)
		}
	case models.SubscriptionStatusPastDue:
		u.SubscriptionStatus = models.STATUS_PAST_DUE
	case models.SubscriptionStatusUnpaid:
		u.SubscriptionStatus = models.STATUS_UNPAID
	case models.SubscriptionStatusCanceled, models.SubscriptionStatusIncompleteExpired:
		u.SubscriptionTier = models.TierFree
		u.SubscriptionStatus = models.STATUS_CANCELED
		u.EndTrial()
	}
	if u.StripeCustomerID == nil && sub.CustomerID != "" {
		customer := sub.CustomerID
		u.StripeCustomerID = &customer
	}
	return userChanged(&before, u)
}

func userChanged(a, b *models.User) bool {
	return a.SubscriptionTier != b.SubscriptionTier ||
		a.SubscriptionStatus != b.SubscriptionStatus ||
		a.IsOnTrial != b.IsOnTrial ||
		!timePtrEqual(a.TrialEndDate, b.TrialEndDate) ||
		!timePtrEqual(a.TrialStartDate, b.TrialStartDate) ||
		!stringPtrEqual(a.StripeCustomerID, b.StripeCustomerID)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func toLedgerRow(userID string, sub *Subscription, eventAt time.Time) *models.Subscription {
	at := eventAt
	return &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        sub.PriceID,
		Status:               normalizeStatus(sub.Status),
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		LastEventAt:          &at,
	}
}

// isTerminal reports whether the ledger row was canceled. A canceled
// subscription never becomes active again, so later updates are dropped.
func isTerminal(row *models.Subscription) bool {
	return row != nil && row.Status == models.SubscriptionStatusCanceled
}

// isStale reports whether an event older than the last applied one arrived late.
func isStale(row *models.Subscription, eventAt time.Time) bool {
	return row != nil && row.LastEventAt != nil && eventAt.Before(*row.LastEventAt)
}
