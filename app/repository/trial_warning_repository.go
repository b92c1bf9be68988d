package repository

import (
	"github.com/ManuelReschke/TFVisualizer/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type trialWarningRepository struct {
	db *gorm.DB
}

// NewTrialWarningRepository creates a new trial warning repository instance
func NewTrialWarningRepository(db *gorm.DB) TrialWarningRepository {
	return &trialWarningRepository{db: db}
}

func (r *trialWarningRepository) CreateIfNotExists(warning *models.TrialWarning) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "threshold_days"},
			{Name: "trial_end_date"},
		},
		DoNothing: true,
	}).Create(warning)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Delete drops a marker so a failed send can be retried on the next sweep
func (r *trialWarningRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.TrialWarning{}).Error
}
