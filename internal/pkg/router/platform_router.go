package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/ManuelReschke/TFVisualizer/app/controllers"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
)

// PlatformRouter serves health and metrics outside the /api group.
type PlatformRouter struct {
	app *appctx.App
}

func (p PlatformRouter) InstallRouter(app *fiber.App) {
	mainController := controllers.NewMainController(p.app)
	app.Get("/health", mainController.HandleHealth)

	cfg := p.app.Config
	if cfg.MetricsPassword == "" {
		log.Warn("[Router] METRICS_PASSWORD not set, /metrics is disabled")
		return
	}
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			cfg.MetricsUser: cfg.MetricsPassword,
		},
	}), p.app.Metrics.Handler())
}

func NewPlatformRouter(a *appctx.App) *PlatformRouter {
	return &PlatformRouter{app: a}
}
