package router

import (
	"strings"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/middleware"
)

// ServerOptions toggles the parts of the server that depend on files on disk.
type ServerOptions struct {
	// DocsFile is the OpenAPI document served under /docs/api/v1. Empty disables the docs.
	DocsFile string
	// AccessLog enables the request logger.
	AccessLog bool
}

// NewServer creates the fiber app with all middlewares and routes installed.
func NewServer(a *appctx.App, opts ServerOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "TFVisualizer",
		ErrorHandler: middleware.ErrorHandler(a.Config.IsDev()),
		BodyLimit:    16 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	origins := strings.Join(a.Config.CORSOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		// fiber refuses credentials with a wildcard origin
		AllowCredentials: origins != "*",
	}))
	app.Use(a.Metrics.Middleware())

	// SWAGGER / OPENAPI
	if opts.DocsFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: opts.DocsFile,
			Path:     "v1",
			Title:    "TFVisualizer API",
		}))
	}

	InstallRouter(app, a)
	return app
}
