package repository

import (
	"time"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"gorm.io/gorm"
)

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new project version repository instance
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) Append(version *models.ProjectVersion) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var max int
		if err := tx.Model(&models.ProjectVersion{}).
			Where("project_id = ?", version.ProjectID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&max).Error; err != nil {
			return err
		}

		version.ID = ""
		version.VersionNumber = max + 1
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		return tx.Model(&models.Project{}).
			Where("id = ?", version.ProjectID).
			UpdateColumn("updated_at", time.Now()).Error
	})
}

func (r *versionRepository) GetLatest(projectID string) (*models.ProjectVersion, error) {
	var v models.ProjectVersion
	err := r.db.Where("project_id = ?", projectID).Order("version_number DESC").First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *versionRepository) GetByNumber(projectID string, number int) (*models.ProjectVersion, error) {
	var v models.ProjectVersion
	err := r.db.Where("project_id = ? AND version_number = ?", projectID, number).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListMeta returns version metadata without payload columns, newest first
func (r *versionRepository) ListMeta(projectID string) ([]models.ProjectVersionMeta, error) {
	var metas []models.ProjectVersionMeta
	err := r.db.Model(&models.ProjectVersion{}).
		Select("id, version_number, created_by, created_at, resource_count").
		Where("project_id = ?", projectID).
		Order("version_number DESC").
		Scan(&metas).Error
	return metas, err
}
