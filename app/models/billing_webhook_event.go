package models

import (
	"time"

	"gorm.io/gorm"
)

const WebhookProviderStripe = "stripe"

// BillingWebhookEvent stores verified provider webhook payloads with
// deduplication metadata for idempotent processing.
type BillingWebhookEvent struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ClaimedAt       *time.Time `gorm:"type:timestamp;default:null" json:"claimed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *BillingWebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	return nil
}

// IsProcessed reports whether the event was applied without error.
func (e *BillingWebhookEvent) IsProcessed() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
