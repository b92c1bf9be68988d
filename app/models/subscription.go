package models

import (
	"time"

	"gorm.io/gorm"
)

// Stripe subscription statuses stored verbatim on the ledger.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusPaused            = "paused"
)

// Subscription mirrors a Stripe subscription for one user.
type Subscription struct {
	ID                   string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID               string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"stripe_subscription_id"`
	StripePriceID        string     `gorm:"type:varchar(255)" json:"stripe_price_id"`
	Status               string     `gorm:"type:varchar(32);not null;index" json:"status"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end"`
	CancelAtPeriodEnd    bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	LastEventAt          *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}

// IsEntitling reports whether the status grants pro features.
func (s *Subscription) IsEntitling() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

func (s *Subscription) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"id":                     s.ID,
		"stripe_subscription_id": s.StripeSubscriptionID,
		"stripe_price_id":        s.StripePriceID,
		"status":                 s.Status,
		"current_period_start":   FormatTimePtr(s.CurrentPeriodStart),
		"current_period_end":     FormatTimePtr(s.CurrentPeriodEnd),
		"cancel_at_period_end":   s.CancelAtPeriodEnd,
		"created_at":             FormatTime(s.CreatedAt),
		"updated_at":             FormatTime(s.UpdatedAt),
	}
}
