package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/billing"
)

const stripeWebhookPath = "/api/webhooks/stripe"

// WebhookController receives signed gateway events
type WebhookController struct {
	app *appctx.App
}

func NewWebhookController(app *appctx.App) *WebhookController {
	return &WebhookController{app: app}
}

// HandleStripe verifies the signature over the raw body before anything is stored.
func (wc *WebhookController) HandleStripe(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	err := wc.app.Billing.ProcessWebhook(c.UserContext(), payload, c.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true})
	case errors.Is(err, billing.ErrNotConfigured):
		log.Error("[Webhook] Rejected delivery, STRIPE_WEBHOOK_SECRET is not set")
		return errorJSON(c, fiber.StatusServiceUnavailable, "Webhook not configured")
	case errors.Is(err, billing.ErrInvalidSignature):
		log.Warnf("[Webhook] Invalid signature: %v", err)
		return errorJSON(c, fiber.StatusBadRequest, "Invalid signature")
	case errors.Is(err, billing.ErrInvalidPayload):
		log.Warnf("[Webhook] Invalid payload: %v", err)
		return errorJSON(c, fiber.StatusBadRequest, "Invalid payload")
	}
	log.Errorf("[Webhook] Processing failed: %v", err)
	return errorJSON(c, fiber.StatusInternalServerError, "Webhook processing failed")
}

// HandleStripeTest reports whether the receiving side is configured.
func (wc *WebhookController) HandleStripeTest(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"webhook_configured": wc.app.Config.StripeWebhookSecret != "",
		"endpoint":           stripeWebhookPath,
		"events":             billing.HandledEvents,
	})
}
