package models

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a random UUID string used as primary key.
func NewID() string {
	return uuid.NewString()
}

// FormatTime renders timestamps as RFC3339 in UTC.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FormatTimePtr returns nil for unset timestamps so they serialize as null.
func FormatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

// All lists every persisted model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&ProjectVersion{},
		&Subscription{},
		&PaymentHistory{},
		&BillingWebhookEvent{},
		&TrialWarning{},
	}
}
