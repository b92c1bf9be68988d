package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/billing"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/usercontext"
)

// SubscriptionController serves checkout, the customer portal and the ledger views
type SubscriptionController struct {
	app *appctx.App
}

func NewSubscriptionController(app *appctx.App) *SubscriptionController {
	return &SubscriptionController{app: app}
}

func (sc *SubscriptionController) HandleAvailable(c *fiber.Ctx) error {
	available := sc.app.Billing.Available()
	message := "Payment processing is not configured"
	if available {
		message = "Payment processing is available"
	}
	return c.JSON(fiber.Map{"available": available, "message": message})
}

// HandleStatus returns the caller's subscription summary. ?sync=true reconciles first.
func (sc *SubscriptionController) HandleStatus(c *fiber.Ctx) error {
	view, err := sc.app.Billing.Status(c.UserContext(), usercontext.GetUserID(c), c.QueryBool("sync", false))
	if err != nil {
		return billingError(c, err, "Failed to fetch subscription status")
	}
	return c.JSON(fiber.Map{
		"tier":                    view.Tier,
		"status":                  view.Status,
		"is_on_trial":             view.IsOnTrial,
		"days_remaining_in_trial": view.DaysRemainingInTrial,
		"subscription":            view.Subscription,
	})
}

func (sc *SubscriptionController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	session, err := sc.app.Billing.CreateCheckoutSession(c.UserContext(), usercontext.GetUser(c))
	if err != nil {
		return billingError(c, err, "Failed to create checkout session")
	}
	return c.JSON(fiber.Map{"success": true, "session_id": session.ID, "url": session.URL})
}

func (sc *SubscriptionController) HandleCreatePortalSession(c *fiber.Ctx) error {
	portalURL, err := sc.app.Billing.CreatePortalSession(c.UserContext(), usercontext.GetUser(c))
	if err != nil {
		return billingError(c, err, "Failed to create portal session")
	}
	return c.JSON(fiber.Map{"success": true, "url": portalURL})
}

func (sc *SubscriptionController) HandleCancel(c *fiber.Ctx) error {
	if err := sc.app.Billing.Cancel(c.UserContext(), usercontext.GetUser(c)); err != nil {
		return billingError(c, err, "Failed to cancel subscription")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Subscription will be canceled at the end of the billing period",
	})
}

func (sc *SubscriptionController) HandleReactivate(c *fiber.Ctx) error {
	if err := sc.app.Billing.Reactivate(c.UserContext(), usercontext.GetUser(c)); err != nil {
		return billingError(c, err, "Failed to reactivate subscription")
	}
	return c.JSON(fiber.Map{"success": true, "message": "Subscription reactivated successfully"})
}

func (sc *SubscriptionController) HandleInvoices(c *fiber.Ctx) error {
	invoices, err := sc.app.Billing.ListInvoices(c.UserContext(), usercontext.GetUser(c))
	if errors.Is(err, billing.ErrNoCustomer) {
		return errorJSON(c, fiber.StatusNotFound, "User or Stripe customer not found")
	}
	if err != nil {
		return billingError(c, err, "Failed to fetch invoices")
	}
	if invoices == nil {
		invoices = []billing.Invoice{}
	}
	return c.JSON(fiber.Map{"success": true, "invoices": invoices})
}

// HandlePayments lists the locally mirrored payments, newest first.
func (sc *SubscriptionController) HandlePayments(c *fiber.Ctx) error {
	payments, err := sc.app.Billing.ListPayments(c.UserContext(), usercontext.GetUser(c))
	if err != nil {
		return billingError(c, err, "Failed to fetch payments")
	}
	out := make([]map[string]interface{}, 0, len(payments))
	for i := range payments {
		out = append(out, payments[i].ToDict())
	}
	return c.JSON(fiber.Map{"success": true, "payments": out})
}

func billingError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		return errorJSON(c, fiber.StatusServiceUnavailable, "Payment system is not configured. Please contact support.")
	case errors.Is(err, billing.ErrAlreadySubscribed):
		return errorJSON(c, fiber.StatusBadRequest, "User already has an active Pro subscription")
	case errors.Is(err, billing.ErrNotPro):
		return errorJSON(c, fiber.StatusForbidden, "Portal is only available for Pro subscribers")
	case errors.Is(err, billing.ErrNoCustomer):
		return errorJSON(c, fiber.StatusBadRequest, "No Stripe customer ID found. Please contact support.")
	case errors.Is(err, billing.ErrNoSubscription):
		return errorJSON(c, fiber.StatusNotFound, "No active subscription found")
	case errors.Is(err, billing.ErrNoPendingCancellation):
		return errorJSON(c, fiber.StatusNotFound, "No subscription set to cancel found")
	case errors.Is(err, billing.ErrUserNotFound):
		return errorJSON(c, fiber.StatusNotFound, "User not found")
	}
	log.Errorf("[Billing] %s: %v", fallback, err)
	return errorJSON(c, fiber.StatusInternalServerError, fallback)
}
