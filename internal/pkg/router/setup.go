package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, a *appctx.App) {
	// Platform routes first so /health and /metrics bypass the API limiter.
	setup(app, NewPlatformRouter(a), NewApiRouter(a))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
