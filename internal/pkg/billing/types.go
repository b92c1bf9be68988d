package billing

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is the provider-agnostic shape of a gateway subscription.
type Subscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// Payment is a normalized payment intent.
type Payment struct {
	ID         string
	CustomerID string
	Amount     int64
	Currency   string
	Metadata   map[string]string
}

// Checkout is a normalized completed checkout session.
type Checkout struct {
	ID             string
	Mode           string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// CheckoutSession is what the client needs to redirect to hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// Invoice is a read-only invoice summary.
type Invoice struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Created  int64           `json:"created"`
	PDFURL   string          `json:"pdf_url"`
}

// Event is a signature-verified webhook event.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
	Payload []byte
}

// Webhook event types handled by the service.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventSubscriptionCreated   = "customer.subscription.created"
	EventSubscriptionUpdated   = "customer.subscription.updated"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
	EventPaymentSucceeded      = "payment_intent.succeeded"
	EventPaymentFailed         = "payment_intent.payment_failed"
	EventInvoicePaymentSuccess = "invoice.payment_succeeded"
	EventInvoicePaymentFailed  = "invoice.payment_failed"
)

// HandledEvents lists the event types worth subscribing to at the gateway.
var HandledEvents = []string{
	EventSubscriptionCreated,
	EventSubscriptionUpdated,
	EventSubscriptionDeleted,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventInvoicePaymentSuccess,
	EventInvoicePaymentFailed,
	EventCheckoutCompleted,
}

// StatusView is the subscription summary shown to the account owner.
type StatusView struct {
	Tier                 string
	Status               string
	IsOnTrial            bool
	DaysRemainingInTrial int
	Subscription         map[string]interface{}
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}
