package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectVersion is an immutable snapshot of a project's diagram.
type ProjectVersion struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID     string         `gorm:"type:varchar(36);not null;index:ux_project_versions_project_number,unique,priority:1" json:"project_id"`
	VersionNumber int            `gorm:"not null;index:ux_project_versions_project_number,unique,priority:2" json:"version_number"`
	Resources     datatypes.JSON `gorm:"not null" json:"resources"`
	Connections   datatypes.JSON `gorm:"not null" json:"connections"`
	Positions     datatypes.JSON `gorm:"not null" json:"positions"`
	TerraformCode string         `gorm:"type:longtext" json:"terraform_code"`
	ResourceCount int            `gorm:"not null;default:0" json:"resource_count"`
	CreatedBy     string         `gorm:"type:varchar(36);not null" json:"created_by"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (v *ProjectVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = NewID()
	}
	return nil
}

// BeforeUpdate rejects any update, versions are append-only.
func (v *ProjectVersion) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableVersion
}

// ProjectVersionMeta is the list view of a version without payload columns.
type ProjectVersionMeta struct {
	ID            string    `json:"id"`
	VersionNumber int       `json:"version_number"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	ResourceCount int       `json:"resource_count"`
}

// EmptyProjectVersion is returned when a project has no saved versions yet.
func EmptyProjectVersion(projectID string) *ProjectVersion {
	return &ProjectVersion{
		ProjectID:     projectID,
		VersionNumber: 0,
		Resources:     datatypes.JSON("[]"),
		Connections:   datatypes.JSON("[]"),
		Positions:     datatypes.JSON("{}"),
	}
}

func (v *ProjectVersion) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"id":             v.ID,
		"project_id":     v.ProjectID,
		"version_number": v.VersionNumber,
		"resources":      rawOr(v.Resources, "[]"),
		"connections":    rawOr(v.Connections, "[]"),
		"positions":      rawOr(v.Positions, "{}"),
		"terraform_code": v.TerraformCode,
		"resource_count": v.ResourceCount,
		"created_by":     v.CreatedBy,
		"created_at":     FormatTime(v.CreatedAt),
	}
}

func (m ProjectVersionMeta) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"id":             m.ID,
		"version_number": m.VersionNumber,
		"created_by":     m.CreatedBy,
		"created_at":     FormatTime(m.CreatedAt),
		"resource_count": m.ResourceCount,
	}
}

func rawOr(j datatypes.JSON, def string) json.RawMessage {
	if len(j) == 0 {
		return json.RawMessage(def)
	}
	return json.RawMessage(j)
}
