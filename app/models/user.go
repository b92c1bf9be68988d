package models

import (
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	TierFree = "free"
	TierPro  = "pro"
)

const (
	STATUS_INACTIVE = "inactive"
	STATUS_ACTIVE   = "active"
	STATUS_TRIALING = "trialing"
	STATUS_PAST_DUE = "past_due"
	STATUS_CANCELED = "canceled"
	STATUS_UNPAID   = "unpaid"
)

const OAuthProviderGoogle = "google"

type User struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email              string     `gorm:"uniqueIndex;type:varchar(255);not null" json:"email" validate:"required,email,max=255"`
	Name               string     `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	PasswordHash       *string    `gorm:"type:varchar(255)" json:"-"`
	AvatarURL          string     `gorm:"type:varchar(500)" json:"avatar_url" validate:"max=500"`
	OAuthProvider      *string    `gorm:"column:oauth_provider;type:varchar(50);index:idx_users_oauth,priority:1" json:"oauth_provider"`
	OAuthID            *string    `gorm:"column:oauth_id;type:varchar(255);index:idx_users_oauth,priority:2" json:"-"`
	OAuthToken         *string    `gorm:"column:oauth_token;type:text" json:"-"`
	StripeCustomerID   *string    `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	SubscriptionTier   string     `gorm:"type:varchar(20);not null;default:'free'" json:"subscription_tier" validate:"oneof=free pro"`
	SubscriptionStatus string     `gorm:"type:varchar(20);not null;default:'inactive'" json:"subscription_status" validate:"oneof=inactive active trialing past_due canceled unpaid"`
	IsOnTrial          bool       `gorm:"not null;default:false;index" json:"is_on_trial"`
	TrialStartDate     *time.Time `gorm:"type:timestamp;default:null" json:"trial_start_date"`
	TrialEndDate       *time.Time `gorm:"type:timestamp;default:null;index" json:"trial_end_date"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Projects      []Project        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Subscriptions []Subscription   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Payments      []PaymentHistory `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TrialWarnings []TrialWarning   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NormalizeEmail lowercases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser builds a free-tier account with a hashed password.
func CreateUser(name, email, password string) (*User, error) {
	u := &User{
		Name:               strings.TrimSpace(name),
		Email:              NormalizeEmail(email),
		SubscriptionTier:   TierFree,
		SubscriptionStatus: STATUS_ACTIVE,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies the password. OAuth-only accounts never match.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		return false
	}
	return CheckPasswordHash(password, *u.PasswordHash)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = &hashed
	return nil
}

func (u *User) IsPro() bool {
	return u.SubscriptionTier == TierPro
}

// IsTrialActive reports whether the trial window is open at now.
func (u *User) IsTrialActive(now time.Time) bool {
	return u.IsOnTrial && u.TrialEndDate != nil && now.Before(*u.TrialEndDate)
}

// DaysRemainingInTrial returns whole days left, 0 when no trial is running.
func (u *User) DaysRemainingInTrial(now time.Time) int {
	if !u.IsTrialActive(now) {
		return 0
	}
	days := math.Floor(u.TrialEndDate.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

// StartTrial opens a trial window. end must lie in the future.
func (u *User) StartTrial(start, end time.Time) {
	u.IsOnTrial = true
	u.TrialStartDate = &start
	u.TrialEndDate = &end
}

// EndTrial clears the trial flag and keeps the window for history.
func (u *User) EndTrial() {
	u.IsOnTrial = false
}

// ToDict is the public JSON shape of a user.
func (u *User) ToDict(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":                      u.ID,
		"email":                   u.Email,
		"name":                    u.Name,
		"avatar_url":              u.AvatarURL,
		"oauth_provider":          u.OAuthProvider,
		"subscription_tier":       u.SubscriptionTier,
		"subscription_status":     u.SubscriptionStatus,
		"is_on_trial":             u.IsOnTrial,
		"trial_start_date":        FormatTimePtr(u.TrialStartDate),
		"trial_end_date":          FormatTimePtr(u.TrialEndDate),
		"days_remaining_in_trial": u.DaysRemainingInTrial(now),
		"created_at":              FormatTime(u.CreatedAt),
		"updated_at":              FormatTime(u.UpdatedAt),
	}
}
