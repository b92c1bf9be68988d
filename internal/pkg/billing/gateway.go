package billing

import (
	"context"

	"github.com/ManuelReschke/TFVisualizer/app/models"
)

// Gateway is the payment provider as seen by the billing service.
type Gateway interface {
	Configured() bool
	CreateCustomer(ctx context.Context, user *models.User) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, userID string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ListCustomerSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*Subscription, error)
	ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error)
	// ParseWebhook verifies the signature and returns the event. Failures wrap
	// ErrInvalidSignature or ErrInvalidPayload.
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
	// Decoders for the event object of each handled event family.
	DecodeSubscription(raw []byte) (*Subscription, error)
	DecodePayment(raw []byte) (*Payment, error)
	DecodeCheckout(raw []byte) (*Checkout, error)
}
