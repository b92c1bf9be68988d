package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/TFVisualizer/app/controllers"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/middleware"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/oauth"
)

type ApiRouter struct {
	app *appctx.App
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	a := h.app
	oauth.Setup(a.Config, a.Redis)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        a.Config.RateLimitMax,
		Expiration: time.Minute,
		// gateway retries arrive in bursts
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/webhooks")
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	}))
	requireAuth := middleware.RequireAuth(a.Tokens, a.Repos.User)

	mainController := controllers.NewMainController(a)
	api.Get("/", mainController.HandleAPIInfo)

	authController := controllers.NewAuthController(a)
	oauthController := controllers.NewOAuthController(a)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authController.HandleRegister)
	authGroup.Post("/login", authController.HandleLogin)
	authGroup.Get("/me", requireAuth, authController.HandleMe)
	authGroup.Post("/refresh", middleware.RequireRefresh(a.Tokens, a.Repos.User), authController.HandleRefresh)
	authGroup.Post("/logout", requireAuth, authController.HandleLogout)
	authGroup.Get("/:provider/login", oauthController.HandleLogin)
	authGroup.Get("/:provider/callback", oauthController.HandleCallback)

	projectController := controllers.NewProjectController(a)
	projectGroup := api.Group("/projects", requireAuth)
	projectGroup.Get("/", projectController.HandleList)
	projectGroup.Post("/", projectController.HandleCreate)
	projectGroup.Get("/:id", projectController.HandleGet)
	projectGroup.Delete("/:id", projectController.HandleDelete)
	projectGroup.Post("/:id/save", projectController.HandleSave)
	projectGroup.Get("/:id/load", projectController.HandleLoad)
	projectGroup.Get("/:id/versions", projectController.HandleListVersions)
	projectGroup.Get("/:id/versions/:n", projectController.HandleGetVersion)

	subscriptionController := controllers.NewSubscriptionController(a)
	subGroup := api.Group("/subscription")
	subGroup.Get("/available", subscriptionController.HandleAvailable)
	subGroup.Get("/status", requireAuth, subscriptionController.HandleStatus)
	subGroup.Post("/create-checkout-session", requireAuth, subscriptionController.HandleCreateCheckoutSession)
	subGroup.Post("/create-portal-session", requireAuth, subscriptionController.HandleCreatePortalSession)
	subGroup.Post("/cancel", requireAuth, subscriptionController.HandleCancel)
	subGroup.Post("/reactivate", requireAuth, subscriptionController.HandleReactivate)
	subGroup.Get("/invoices", requireAuth, subscriptionController.HandleInvoices)
	subGroup.Get("/payments", requireAuth, subscriptionController.HandlePayments)

	webhookController := controllers.NewWebhookController(a)
	api.Post("/webhooks/stripe", webhookController.HandleStripe)
	api.Get("/webhooks/stripe/test", webhookController.HandleStripeTest)

	aiController := controllers.NewAIController(a)
	aiGroup := api.Group("/ai")
	aiGroup.Get("/available", aiController.HandleAvailable)
	aiGroup.Post("/cost-optimization", requireAuth, aiController.HandleCostOptimization)
	aiGroup.Post("/design", requireAuth, aiController.HandleDesign)

	terraformController := controllers.NewTerraformController()
	tfGroup := api.Group("/terraform", requireAuth)
	tfGroup.Post("/parse", terraformController.HandleParse)
	tfGroup.Post("/generate", terraformController.HandleGenerate)
	tfGroup.Post("/validate", terraformController.HandleValidate)
}

func NewApiRouter(a *appctx.App) *ApiRouter {
	return &ApiRouter{app: a}
}
