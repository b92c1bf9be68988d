package billing

import "errors"

var (
	ErrNotConfigured         = errors.New("payment processing is not configured")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrAlreadySubscribed     = errors.New("user already has an active pro subscription")
	ErrNotPro                = errors.New("portal is only available for pro subscribers")
	ErrNoCustomer            = errors.New("no stripe customer for user")
	ErrNoSubscription        = errors.New("no active subscription found")
	ErrNoPendingCancellation = errors.New("no subscription set to cancel found")
	ErrUserNotFound          = errors.New("user not found")
)
