package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
)

// StripeConfig holds the Stripe settings used by the gateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceIDPro    string
	SuccessURL    string
	CancelURL     string
	ReturnURL     string
	Configured    bool
}

// StripeConfigFromConfig extracts the gateway settings from the app config.
func StripeConfigFromConfig(cfg *config.Config) StripeConfig {
	return StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceIDPro:    cfg.StripePriceIDPro,
		SuccessURL:    cfg.StripeSuccessURL,
		CancelURL:     cfg.StripeCancelURL,
		ReturnURL:     cfg.FrontendURL + "/dashboard",
		Configured:    cfg.StripeConfigured(),
	}
}

// StripeGateway talks to the Stripe API through the stripe-go client.
type StripeGateway struct {
	cfg StripeConfig
	sc  *client.API
}

// NewStripeGateway creates a gateway. The webhook path works without an API key.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	g := &StripeGateway{cfg: cfg}
	if cfg.Configured {
		g.sc = client.New(cfg.SecretKey, nil)
	}
	return g
}

func (g *StripeGateway) Configured() bool {
	return g.sc != nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, user *models.User) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", user.ID)

	customer, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return customer.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, customerID, userID string) (*CheckoutSession, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.cfg.PriceIDPro),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(g.cfg.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.cfg.ReturnURL),
	}
	params.Context = ctx

	sess, err := g.sc.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return normalizeSubscription(sub), nil
}

func (g *StripeGateway) ListCustomerSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var out []Subscription
	i := g.sc.Subscriptions.List(params)
	for i.Next() {
		out = append(out, *normalizeSubscription(i.Subscription()))
	}
	if err := i.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions for %s: %w", customerID, err)
	}
	return out, nil
}

func (g *StripeGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*Subscription, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx

	sub, err := g.sc.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", subscriptionID, err)
	}
	return normalizeSubscription(sub), nil
}

func (g *StripeGateway) ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	invoices := make([]Invoice, 0, limit)
	i := g.sc.Invoices.List(params)
	for i.Next() && len(invoices) < limit {
		inv := i.Invoice()
		invoices = append(invoices, Invoice{
			ID:       inv.ID,
			Amount:   models.AmountFromMinorUnits(inv.AmountPaid),
			Currency: string(inv.Currency),
			Status:   string(inv.Status),
			Created:  inv.Created,
			PDFURL:   inv.InvoicePDF,
		})
	}
	if err := i.Err(); err != nil {
		return nil, fmt.Errorf("list invoices for %s: %w", customerID, err)
	}
	return invoices, nil
}

// ParseWebhook verifies the signature header against the webhook secret. Without
// a secret every delivery is rejected.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: webhook secret not set", ErrNotConfigured)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if evt.Data == nil || len(evt.Data.Raw) == 0 || evt.ID == "" || evt.Type == "" {
		return nil, fmt.Errorf("%w: event without id, type or data", ErrInvalidPayload)
	}
	return &Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: time.Unix(evt.Created, 0).UTC(),
		Object:  evt.Data.Raw,
		Payload: payload,
	}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func (g *StripeGateway) DecodeSubscription(raw []byte) (*Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	if sub.ID == "" {
		return nil, errors.New("decode subscription: missing id")
	}
	return normalizeSubscription(&sub), nil
}

func (g *StripeGateway) DecodePayment(raw []byte) (*Payment, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	if pi.ID == "" {
		return nil, errors.New("decode payment intent: missing id")
	}
	p := &Payment{
		ID:       pi.ID,
		Amount:   pi.Amount,
		Currency: strings.ToLower(string(pi.Currency)),
		Metadata: pi.Metadata,
	}
	if pi.Customer != nil {
		p.CustomerID = pi.Customer.ID
	}
	return p, nil
}

func (g *StripeGateway) DecodeCheckout(raw []byte) (*Checkout, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	c := &Checkout{
		ID:       sess.ID,
		Mode:     string(sess.Mode),
		Metadata: sess.Metadata,
	}
	if sess.Subscription != nil {
		c.SubscriptionID = sess.Subscription.ID
	}
	if sess.Customer != nil {
		c.CustomerID = sess.Customer.ID
	}
	return c, nil
}

func normalizeSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: unixPtr(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixPtr(sub.CurrentPeriodEnd),
		TrialStart:         unixPtr(sub.TrialStart),
		TrialEnd:           unixPtr(sub.TrialEnd),
		Metadata:           sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
