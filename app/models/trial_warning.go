package models

import (
	"time"

	"gorm.io/gorm"
)

// TrialWarningThresholds are the remaining-day counts that trigger a reminder.
var TrialWarningThresholds = []int{7, 3, 1}

// TrialWarning marks a reminder as sent for one trial window and threshold.
type TrialWarning struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string    `gorm:"type:varchar(36);not null;index:ux_trial_warnings_user_threshold_end,unique,priority:1" json:"user_id"`
	ThresholdDays int       `gorm:"not null;index:ux_trial_warnings_user_threshold_end,unique,priority:2" json:"threshold_days"`
	TrialEndDate  time.Time `gorm:"type:timestamp;not null;index:ux_trial_warnings_user_threshold_end,unique,priority:3" json:"trial_end_date"`
	SentAt        time.Time `gorm:"type:timestamp;not null" json:"sent_at"`
}

func (w *TrialWarning) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = NewID()
	}
	return nil
}

// IsWarningThreshold reports whether days matches a reminder threshold.
func IsWarningThreshold(days int) bool {
	for _, t := range TrialWarningThresholds {
		if t == days {
			return true
		}
	}
	return false
}
