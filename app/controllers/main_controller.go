package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/cache"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/database"
)

const apiVersion = "1.0.0"

// MainController serves the platform endpoints
type MainController struct {
	app *appctx.App
}

func NewMainController(app *appctx.App) *MainController {
	return &MainController{app: app}
}

// HandleHealth is the load balancer probe. Redis is optional and never fails the check.
func (mc *MainController) HandleHealth(c *fiber.Ctx) error {
	if err := database.Ping(mc.app.DB); err != nil {
		log.Errorf("[Health] Health check failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "connected",
		"redis":    cache.Status(c.UserContext(), mc.app.Redis),
	})
}

func (mc *MainController) HandleAPIInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":        "TFVisualizer API",
		"version":     apiVersion,
		"description": "Visual Terraform Infrastructure Designer",
		"endpoints": fiber.Map{
			"auth":         "/api/auth",
			"projects":     "/api/projects",
			"terraform":    "/api/terraform",
			"subscription": "/api/subscription",
			"webhooks":     "/api/webhooks",
			"ai":           "/api/ai",
		},
	})
}
