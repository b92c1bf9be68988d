package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
	VisibilityTeam    = "team"
)

type Project struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string           `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Name        string           `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Description string           `gorm:"type:text" json:"description"`
	Visibility  string           `gorm:"type:varchar(20);not null;default:'private'" json:"visibility" validate:"oneof=private public team"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	Versions    []ProjectVersion `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPrivate
	}
	return nil
}

func (p *Project) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsValidVisibility reports whether v is one of the known visibility values.
func IsValidVisibility(v string) bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityTeam:
		return true
	default:
		return false
	}
}

func (p *Project) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"user_id":     p.UserID,
		"name":        p.Name,
		"description": p.Description,
		"visibility":  p.Visibility,
		"created_at":  FormatTime(p.CreatedAt),
		"updated_at":  FormatTime(p.UpdatedAt),
	}
}
