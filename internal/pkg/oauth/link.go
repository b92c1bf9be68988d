package oauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/markbates/goth"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/app/repository"
)

var (
	// ErrInvalidIdentity means the provider returned no id or email.
	ErrInvalidIdentity = errors.New("provider identity incomplete")
	// ErrEmailUnverified blocks linking an existing account through an unverified address.
	ErrEmailUnverified = errors.New("provider email not verified")
	// ErrAlreadyLinked means the matching account belongs to another provider identity.
	ErrAlreadyLinked = errors.New("account linked to another identity")
)

// EmailVerified reads Google's verified_email claim from the raw userinfo.
func EmailVerified(u goth.User) bool {
	switch v := u.RawData["verified_email"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// Linker maps a provider identity onto a local account.
type Linker struct {
	users repository.UserRepository
}

func NewLinker(users repository.UserRepository) *Linker {
	return &Linker{users: users}
}

// Resolve finds the account by provider id, then by verified email, and
// creates a free account when neither matches.
func (l *Linker) Resolve(u goth.User) (*models.User, error) {
	email := models.NormalizeEmail(u.Email)
	if u.UserID == "" || email == "" {
		return nil, ErrInvalidIdentity
	}
	provider := u.Provider
	if provider == "" {
		provider = ProviderGoogle
	}

	user, err := l.users.GetByOAuth(provider, u.UserID)
	if err == nil {
		setToken(user, u)
		if err := l.users.Update(user); err != nil {
			return nil, fmt.Errorf("update oauth token: %w", err)
		}
		return user, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	user, err = l.users.GetByEmail(email)
	switch {
	case err == nil:
		if user.OAuthID != nil && *user.OAuthID != "" {
			return nil, ErrAlreadyLinked
		}
		if !EmailVerified(u) {
			return nil, ErrEmailUnverified
		}
		user.OAuthProvider = &provider
		user.OAuthID = &u.UserID
		setToken(user, u)
		if u.AvatarURL != "" {
			user.AvatarURL = u.AvatarURL
		}
		if err := l.users.Update(user); err != nil {
			return nil, fmt.Errorf("link oauth identity: %w", err)
		}
		log.Infof("[OAuth] Existing user linked to %s: %s", provider, user.ID)
		return user, nil
	case !repository.IsNotFound(err):
		return nil, err
	}

	user = &models.User{
		Email:              email,
		Name:               displayName(u, email),
		AvatarURL:          u.AvatarURL,
		OAuthProvider:      &provider,
		OAuthID:            &u.UserID,
		SubscriptionTier:   models.TierFree,
		SubscriptionStatus: models.STATUS_ACTIVE,
	}
	setToken(user, u)
	if err := l.users.Create(user); err != nil {
		return nil, fmt.Errorf("create oauth user: %w", err)
	}
	log.Infof("[OAuth] New %s user created: %s", provider, user.ID)
	return user, nil
}

func setToken(user *models.User, u goth.User) {
	if u.AccessToken == "" {
		return
	}
	token := u.AccessToken
	user.OAuthToken = &token
}

func displayName(u goth.User, email string) string {
	for _, v := range []string{u.Name, u.NickName} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.SplitN(email, "@", 2)[0]
}
