package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TFVisualizer/app/models"
)

const (
	invoiceLimit = 10
	// webhookClaimTTL bounds how long a crashed delivery blocks redelivery.
	webhookClaimTTL = 5 * time.Minute
)

// EventRecorder observes processed webhook events, used for metrics.
type EventRecorder interface {
	WebhookProcessed(eventType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) WebhookProcessed(string, string) {}

// Service keeps the local subscription ledger in sync with the payment gateway.
type Service struct {
	repo     Repository
	gateway  Gateway
	recorder EventRecorder
	now      func() time.Time
}

// NewService creates a billing service from an injected repository and gateway.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{repo: repo, gateway: gateway, recorder: nopRecorder{}, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(NewRepository(db), gateway)
}

// WithRecorder attaches an event recorder.
func (s *Service) WithRecorder(r EventRecorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// Available reports whether checkout can be offered.
func (s *Service) Available() bool {
	return s.gateway != nil && s.gateway.Configured()
}

// CreateCheckoutSession starts hosted checkout for the pro plan, creating the
// gateway customer on first use.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User) (*CheckoutSession, error) {
	if !s.Available() {
		return nil, ErrNotConfigured
	}
	if user.IsPro() && user.SubscriptionStatus == models.STATUS_ACTIVE {
		return nil, ErrAlreadySubscribed
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, customerID, user.ID)
	if err != nil {
		return nil, err
	}
	log.Infof("[Billing] Created checkout session %s for user %s", sess.ID, user.ID)
	return sess, nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	user.StripeCustomerID = &customerID
	if err := s.repo.SaveUser(user); err != nil {
		return "", fmt.Errorf("store customer id: %w", err)
	}
	log.Infof("[Billing] Created customer %s for user %s", customerID, user.ID)
	return customerID, nil
}

// CreatePortalSession returns a self-service portal URL for pro users.
func (s *Service) CreatePortalSession(ctx context.Context, user *models.User) (string, error) {
	if !user.IsPro() {
		return "", ErrNotPro
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	if !s.Available() {
		return "", ErrNotConfigured
	}
	return s.gateway.CreatePortalSession(ctx, *user.StripeCustomerID)
}

// Cancel schedules the user's subscription to end with the current period.
func (s *Service) Cancel(ctx context.Context, user *models.User) error {
	sub, err := s.repo.GetSubscriptionByUser(user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoSubscription
	}
	if err != nil {
		return err
	}
	return s.setCancelAtPeriodEnd(ctx, sub, true)
}

// Reactivate undoes a pending cancellation.
func (s *Service) Reactivate(ctx context.Context, user *models.User) error {
	sub, err := s.repo.GetSubscriptionByUser(user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoPendingCancellation
	}
	if err != nil {
		return err
	}
	if !sub.CancelAtPeriodEnd {
		return ErrNoPendingCancellation
	}
	return s.setCancelAtPeriodEnd(ctx, sub, false)
}

func (s *Service) setCancelAtPeriodEnd(ctx context.Context, sub *models.Subscription, cancel bool) error {
	if !s.Available() {
		return ErrNotConfigured
	}
	if _, err := s.gateway.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, cancel); err != nil {
		return err
	}
	sub.CancelAtPeriodEnd = cancel
	if err := s.repo.SetCancelAtPeriodEnd(sub.ID, cancel); err != nil {
		return fmt.Errorf("mirror cancel_at_period_end: %w", err)
	}
	log.Infof("[Billing] Subscription %s cancel_at_period_end=%t", sub.StripeSubscriptionID, cancel)
	return nil
}

// ListInvoices returns the most recent invoices of the user's customer.
func (s *Service) ListInvoices(ctx context.Context, user *models.User) ([]Invoice, error) {
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, ErrNoCustomer
	}
	if !s.Available() {
		return nil, ErrNotConfigured
	}
	return s.gateway.ListInvoices(ctx, *user.StripeCustomerID, invoiceLimit)
}

// ListPayments returns the local payment history, newest first.
func (s *Service) ListPayments(ctx context.Context, user *models.User) ([]models.PaymentHistory, error) {
	_ = ctx
	return s.repo.ListPaymentsByUser(user.ID)
}

// Status returns the subscription summary, reconciling first when sync is set.
func (s *Service) Status(ctx context.Context, userID string, sync bool) (*StatusView, error) {
	if sync && s.Available() {
		if err := s.Reconcile(ctx, userID); err != nil {
			log.Errorf("[Billing] Reconcile on status for user %s failed: %v", userID, err)
		}
	}

	user, err := s.repo.GetUserByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	view := &StatusView{
		Tier:                 user.SubscriptionTier,
		Status:               user.SubscriptionStatus,
		IsOnTrial:            user.IsOnTrial,
		DaysRemainingInTrial: user.DaysRemainingInTrial(now),
	}
	sub, err := s.repo.GetSubscriptionByUser(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if sub != nil {
		view.Subscription = sub.ToDict()
	}
	return view, nil
}

// Reconcile reads the customer's subscriptions from the gateway and forces the
// local tier and status to match. Safe to run any number of times.
func (s *Service) Reconcile(ctx context.Context, userID string) error {
	if !s.Available() {
		return ErrNotConfigured
	}
	user, err := s.repo.GetUserByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	var subs []Subscription
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		subs, err = s.gateway.ListCustomerSubscriptions(ctx, *user.StripeCustomerID)
		if err != nil {
			return err
		}
	}

	now := s.now()
	return s.repo.Transaction(func(tx Repository) error {
		var best *Subscription
		for i := range subs {
			sub := &subs[i]
			if err := tx.UpsertSubscription(toLedgerRow(user.ID, sub, now)); err != nil {
				return fmt.Errorf("upsert subscription %s: %w", sub.ID, err)
			}
			if isEntitlingStatus(sub.Status) && (best == nil || statusRank(sub.Status) > statusRank(best.Status)) {
				best = sub
			}
		}

		switch {
		case best != nil:
			applyStatus(user, best, now)
		case user.IsPro():
			user.SubscriptionTier = models.TierFree
			user.SubscriptionStatus = models.STATUS_INACTIVE
			user.EndTrial()
		default:
			return nil
		}
		if err := tx.SaveUser(user); err != nil {
			return err
		}
		log.Infof("[Billing] Reconciled user %s to %s/%s", user.ID, user.SubscriptionTier, user.SubscriptionStatus)
		return nil
	})
}

// ProcessWebhook verifies, records and applies a gateway webhook. Redelivered
// events that were already applied are acknowledged without side effects.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if s.gateway == nil {
		return ErrNotConfigured
	}
	event, err := s.gateway.ParseWebhook(payload, signatureHeader)
	if err != nil {
		return err
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.WebhookProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(event.Payload),
	})
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if !created && stored.IsProcessed() {
		log.Infof("[Billing] Duplicate webhook event %s (%s) ignored", event.ID, event.Type)
		s.recorder.WebhookProcessed(event.Type, "duplicate")
		return nil
	}
	now := s.now()
	claimed, err := s.repo.ClaimWebhookEvent(stored.ID, now, now.Add(-webhookClaimTTL))
	if err != nil {
		return fmt.Errorf("claim webhook event: %w", err)
	}
	if !claimed {
		log.Infof("[Billing] Webhook event %s (%s) already in progress", event.ID, event.Type)
		s.recorder.WebhookProcessed(event.Type, "in_progress")
		return nil
	}

	log.Infof("[Billing] Received webhook event: %s", event.Type)
	handleErr := s.HandleEvent(ctx, event)
	if markErr := s.MarkWebhookProcessed(ctx, stored.ID, handleErr); markErr != nil {
		log.Errorf("[Billing] Failed to mark webhook %s processed: %v", event.ID, markErr)
	}
	if handleErr != nil {
		log.Errorf("[Billing] Error processing webhook event %s: %v", event.Type, handleErr)
		s.recorder.WebhookProcessed(event.Type, "error")
		return handleErr
	}
	s.recorder.WebhookProcessed(event.Type, "ok")
	return nil
}

// HandleEvent applies one verified event to the ledger.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		checkout, err := s.gateway.DecodeCheckout(event.Object)
		if err != nil {
			return err
		}
		return s.handleCheckoutCompleted(ctx, event, checkout)

	case EventSubscriptionCreated, EventSubscriptionUpdated:
		sub, err := s.gateway.DecodeSubscription(event.Object)
		if err != nil {
			return err
		}
		return s.handleSubscriptionChanged(event, sub)

	case EventSubscriptionDeleted:
		sub, err := s.gateway.DecodeSubscription(event.Object)
		if err != nil {
			return err
		}
		return s.handleSubscriptionDeleted(event, sub)

	case EventPaymentSucceeded, EventPaymentFailed:
		payment, err := s.gateway.DecodePayment(event.Object)
		if err != nil {
			return err
		}
		status := models.PaymentStatusSucceeded
		if event.Type == EventPaymentFailed {
			status = models.PaymentStatusFailed
		}
		return s.handlePayment(payment, status)

	case EventInvoicePaymentSuccess:
		log.Infof("[Billing] Invoice payment succeeded (event %s)", event.ID)
		return nil

	case EventInvoicePaymentFailed:
		log.Warnf("[Billing] Invoice payment failed (event %s)", event.ID)
		return nil

	default:
		log.Infof("[Billing] Unhandled webhook event type: %s", event.Type)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *Event, checkout *Checkout) error {
	userID := strings.TrimSpace(checkout.Metadata["user_id"])
	if userID == "" {
		log.Errorf("[Billing] No user_id in checkout session %s metadata", checkout.ID)
		return nil
	}
	user, err := s.repo.GetUserByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Billing] User %s from checkout session %s not found", userID, checkout.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if checkout.Mode != "subscription" || checkout.SubscriptionID == "" {
		return nil
	}

	sub, err := s.gateway.GetSubscription(ctx, checkout.SubscriptionID)
	if err != nil {
		return err
	}
	if sub.CustomerID == "" {
		sub.CustomerID = checkout.CustomerID
	}

	now := s.now()
	return s.repo.Transaction(func(tx Repository) error {
		existing, err := tx.GetSubscriptionByStripeID(sub.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if isStale(existing, event.Created) {
			log.Infof("[Billing] Checkout %s older than ledger state of %s, skipping", checkout.ID, sub.ID)
			return nil
		}

		user.SubscriptionTier = models.TierPro
		applyStatus(user, sub, now)
		if err := tx.SaveUser(user); err != nil {
			return err
		}
		if err := tx.UpsertSubscription(toLedgerRow(user.ID, sub, event.Created)); err != nil {
			return err
		}
		log.Infof("[Billing] User %s upgraded to Pro via checkout session %s", user.ID, checkout.ID)
		return nil
	})
}

func (s *Service) handleSubscriptionChanged(event *Event, sub *Subscription) error {
	now := s.now()
	return s.repo.Transaction(func(tx Repository) error {
		existing, err := tx.GetSubscriptionByStripeID(sub.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if isStale(existing, event.Created) {
			log.Infof("[Billing] Stale %s for subscription %s ignored", event.Type, sub.ID)
			return nil
		}
		if isTerminal(existing) {
			log.Infof("[Billing] %s for canceled subscription %s ignored", event.Type, sub.ID)
			return nil
		}

		user, err := s.resolveOwner(tx, existing, sub.Metadata, sub.CustomerID)
		if err != nil {
			return err
		}
		if user == nil {
			log.Warnf("[Billing] No owner found for subscription %s", sub.ID)
			return nil
		}

		if err := tx.UpsertSubscription(toLedgerRow(user.ID, sub, event.Created)); err != nil {
			return err
		}
		if applyStatus(user, sub, now) {
			if err := tx.SaveUser(user); err != nil {
				return err
			}
		}
		log.Infof("[Billing] Subscription %s %s for user %s", sub.ID, sub.Status, user.ID)
		return nil
	})
}

func (s *Service) handleSubscriptionDeleted(event *Event, sub *Subscription) error {
	return s.repo.Transaction(func(tx Repository) error {
		existing, err := tx.GetSubscriptionByStripeID(sub.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		user, err := s.resolveOwner(tx, existing, sub.Metadata, sub.CustomerID)
		if err != nil {
			return err
		}
		if user == nil {
			log.Warnf("[Billing] Subscription %s deleted but no owner found", sub.ID)
			return nil
		}

		user.SubscriptionTier = models.TierFree
		user.SubscriptionStatus = models.STATUS_CANCELED
		user.EndTrial()
		if err := tx.SaveUser(user); err != nil {
			return err
		}

		eventAt := event.Created
		if existing != nil && existing.LastEventAt != nil && existing.LastEventAt.After(eventAt) {
			eventAt = *existing.LastEventAt
		}
		row := toLedgerRow(user.ID, sub, eventAt)
		row.Status = models.SubscriptionStatusCanceled
		if err := tx.UpsertSubscription(row); err != nil {
			return err
		}
		log.Infof("[Billing] Subscription %s deleted, user %s downgraded to free", sub.ID, user.ID)
		return nil
	})
}

func (s *Service) handlePayment(payment *Payment, status string) error {
	user, err := s.resolveOwner(s.repo, nil, payment.Metadata, payment.CustomerID)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Billing] Payment %s has no resolvable user, skipping", payment.ID)
		return nil
	}

	currency := payment.Currency
	if currency == "" {
		currency = "usd"
	}
	created, err := s.repo.CreatePaymentIfNotExists(&models.PaymentHistory{
		UserID:                user.ID,
		StripePaymentIntentID: payment.ID,
		Amount:                models.AmountFromMinorUnits(payment.Amount),
		Currency:              currency,
		Status:                status,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Infof("[Billing] Payment %s already recorded", payment.ID)
		return nil
	}
	if status == models.PaymentStatusFailed {
		log.Warnf("[Billing] Payment %s failed for user %s", payment.ID, user.ID)
	} else {
		log.Infof("[Billing] Payment %s recorded for user %s", payment.ID, user.ID)
	}
	return nil
}

// resolveOwner finds the user from the ledger row, then metadata, then customer id.
// A nil user with nil error means nobody matched.
func (s *Service) resolveOwner(repo Repository, row *models.Subscription, metadata map[string]string, customerID string) (*models.User, error) {
	candidates := make([]func() (*models.User, error), 0, 3)
	if row != nil && row.UserID != "" {
		candidates = append(candidates, func() (*models.User, error) { return repo.GetUserByID(row.UserID) })
	}
	if id := strings.TrimSpace(metadata["user_id"]); id != "" {
		candidates = append(candidates, func() (*models.User, error) { return repo.GetUserByID(id) })
	}
	if customerID != "" {
		candidates = append(candidates, func() (*models.User, error) { return repo.GetUserByStripeCustomerID(customerID) })
	}

	for _, lookup := range candidates {
		user, err := lookup()
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		return false, nil, errors.New("provider_event_id is required")
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID string, processingErr error) error {
	_ = ctx
	if webhookEventID == "" {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
