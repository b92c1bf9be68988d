package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusPending   = "pending"
)

// PaymentHistory is an append-only record of a Stripe payment intent.
type PaymentHistory struct {
	ID                    string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID                string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	StripePaymentIntentID string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"stripe_payment_intent_id"`
	Amount                decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency              string          `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status                string          `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt             time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PaymentHistory) TableName() string {
	return "payment_history"
}

func (p *PaymentHistory) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Currency == "" {
		p.Currency = "usd"
	}
	return nil
}

// AmountFromMinorUnits converts Stripe cents to major currency units.
func AmountFromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func (p *PaymentHistory) ToDict() map[string]interface{} {
	amount, _ := p.Amount.Float64()
	return map[string]interface{}{
		"id":                       p.ID,
		"stripe_payment_intent_id": p.StripePaymentIntentID,
		"amount":                   amount,
		"currency":                 p.Currency,
		"status":                   p.Status,
		"created_at":               FormatTime(p.CreatedAt),
	}
}
