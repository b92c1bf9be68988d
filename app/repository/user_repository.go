package repository

import (
	"strings"
	"time"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their normalized email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByOAuth retrieves a user by a linked provider identity
func (r *userRepository) GetByOAuth(provider, oauthID string) (*models.User, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	id := strings.TrimSpace(oauthID)
	if p == "" || id == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("oauth_provider = ? AND oauth_id = ?", p, id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByStripeCustomerID retrieves the user owning a Stripe customer
func (r *userRepository) GetByStripeCustomerID(customerID string) (*models.User, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("stripe_customer_id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update saves all user fields
func (r *userRepository) Update(user *models.User) error {
	return r.db.Omit("Projects", "Subscriptions", "Payments", "TrialWarnings").Save(user).Error
}

// ListExpiredTrials returns trial users whose window closed at or before now
func (r *userRepository) ListExpiredTrials(now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("is_on_trial = ? AND trial_end_date IS NOT NULL AND trial_end_date <= ?", true, now).
		Order("trial_end_date ASC").
		Find(&users).Error
	return users, err
}

// ListActiveTrials returns trial users whose window is still open
func (r *userRepository) ListActiveTrials(now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("is_on_trial = ? AND trial_end_date > ?", true, now).
		Order("trial_end_date ASC").
		Find(&users).Error
	return users, err
}
