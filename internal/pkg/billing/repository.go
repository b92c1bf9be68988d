package billing

import (
	"time"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	// Transaction runs fn against a repository bound to one DB transaction.
	Transaction(fn func(repo Repository) error) error
	GetUserByID(id string) (*models.User, error)
	GetUserByStripeCustomerID(customerID string) (*models.User, error)
	SaveUser(user *models.User) error
	GetSubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error)
	GetSubscriptionByUser(userID string) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error
	SetCancelAtPeriodEnd(id string, cancel bool) error
	CreatePaymentIfNotExists(payment *models.PaymentHistory) (bool, error)
	ListPaymentsByUser(userID string) ([]models.PaymentHistory, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	// ClaimWebhookEvent takes an unapplied event for processing. Claims older
	// than staleBefore are treated as abandoned.
	ClaimWebhookEvent(id string, now, staleBefore time.Time) (bool, error)
	MarkWebhookProcessed(id string, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(repo Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	if err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUser(user *models.User) error {
	return r.db.Omit("Projects", "Subscriptions", "Payments", "TrialWarnings").Save(user).Error
}

func (r *gormRepository) GetSubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscriptionByUser returns the user's first ledger row.
func (r *gormRepository) GetSubscriptionByUser(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("user_id = ?", userID).Order("created_at ASC").First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"stripe_price_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"last_event_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Reload the stored row, the generated ID is discarded on conflict.
	var stored models.Subscription
	if err := r.db.Where("stripe_subscription_id = ?", sub.StripeSubscriptionID).First(&stored).Error; err != nil {
		return err
	}
	*sub = stored
	return nil
}

func (r *gormRepository) SetCancelAtPeriodEnd(id string, cancel bool) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Update("cancel_at_period_end", cancel).Error
}

func (r *gormRepository) CreatePaymentIfNotExists(payment *models.PaymentHistory) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_payment_intent_id"}},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListPaymentsByUser(userID string) ([]models.PaymentHistory, error) {
	var payments []models.PaymentHistory
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) ClaimWebhookEvent(id string, now, staleBefore time.Time) (bool, error) {
	tx := r.db.Model(&models.BillingWebhookEvent{}).
		Where("id = ?", id).
		Where("(processed_at IS NULL OR COALESCE(processing_error, '') <> '')").
		Where("(claimed_at IS NULL OR claimed_at < ?)", staleBefore).
		Update("claimed_at", now)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *gormRepository) MarkWebhookProcessed(id string, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
		"claimed_at":       nil,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
