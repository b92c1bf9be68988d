package repository

import (
	"time"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByOAuth(provider, oauthID string) (*models.User, error)
	GetByStripeCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	ListExpiredTrials(now time.Time) ([]models.User, error)
	ListActiveTrials(now time.Time) ([]models.User, error)
}

// ProjectRepository defines the interface for project-related database operations
type ProjectRepository interface {
	Create(project *models.Project) error
	GetByID(id string) (*models.Project, error)
	ListByUser(userID string) ([]models.Project, error)
	CountByUser(userID string) (int64, error)
	Delete(id string) error
}

// VersionRepository defines the interface for the append-only project version log
type VersionRepository interface {
	// Append assigns the next version number and inserts the row in one transaction,
	// touching the owning project's updated_at.
	Append(version *models.ProjectVersion) error
	GetLatest(projectID string) (*models.ProjectVersion, error)
	GetByNumber(projectID string, number int) (*models.ProjectVersion, error)
	ListMeta(projectID string) ([]models.ProjectVersionMeta, error)
}

// TrialWarningRepository persists sent trial reminders
type TrialWarningRepository interface {
	// CreateIfNotExists returns true only when the marker was freshly inserted.
	CreateIfNotExists(warning *models.TrialWarning) (bool, error)
	Delete(id string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Project      ProjectRepository
	Version      VersionRepository
	TrialWarning TrialWarningRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Project:      NewProjectRepository(db),
		Version:      NewVersionRepository(db),
		TrialWarning: NewTrialWarningRepository(db),
	}
}
